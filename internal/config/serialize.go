package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// DefaultHCL renders a starter configuration file with commented-out
// notification credentials. Used by "gatewall init".
func DefaultHCL() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("log_level", cty.StringVal("info"))
	body.AppendNewline()

	fw := body.AppendNewBlock("firewall", nil).Body()
	fw.SetAttributeValue("enabled", cty.True)
	fw.SetAttributeValue("country", cty.StringVal("de"))
	fw.SetAttributeValue("allow_ping", cty.True)
	fw.SetAttributeValue("whitelist", cty.ListVal([]cty.Value{
		cty.StringVal("203.0.113.10"),
		cty.StringVal("198.51.100.0/24"),
	}))
	fw.SetAttributeValue("ports", cty.ListVal([]cty.Value{
		cty.NumberIntVal(22),
		cty.NumberIntVal(443),
	}))
	body.AppendNewline()

	wd := body.AppendNewBlock("watchdog", nil).Body()
	wd.SetAttributeValue("enabled", cty.True)
	wd.SetAttributeValue("interval", cty.StringVal("60s"))
	wd.SetAttributeValue("timeout", cty.StringVal("3s"))
	wd.SetAttributeValue("threshold", cty.NumberIntVal(int64(DefaultThreshold)))
	wd.SetAttributeValue("grace", cty.StringVal("5s"))
	wd.SetAttributeValue("method", cty.StringVal("tcp"))

	t1 := wd.AppendNewBlock("target", []string{"cloudflare-dns"}).Body()
	t1.SetAttributeValue("address", cty.StringVal("1.1.1.1"))
	t1.SetAttributeValue("port", cty.NumberIntVal(53))

	t2 := wd.AppendNewBlock("target", []string{"google-dns"}).Body()
	t2.SetAttributeValue("address", cty.StringVal("8.8.8.8"))
	t2.SetAttributeValue("port", cty.NumberIntVal(53))
	body.AppendNewline()

	nt := body.AppendNewBlock("notifications", nil).Body()
	nt.SetAttributeValue("enabled", cty.True)
	ch := nt.AppendNewBlock("channel", []string{"telegram"}).Body()
	ch.SetAttributeValue("type", cty.StringVal("telegram"))
	ch.SetAttributeValue("enabled", cty.True)
	ch.SetAttributeValue("level", cty.StringVal("critical"))
	ch.SetAttributeValue("bot_token", cty.StringVal("<bot-token>"))
	ch.SetAttributeValue("chat_id", cty.StringVal("<chat-id>"))

	return f.Bytes()
}

// WriteDefault writes the starter configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}
	return os.WriteFile(path, DefaultHCL(), 0600)
}
