package core

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/spf13/viper"
)

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	SetDefaults(v, "qrlchecker", "secret-pass")
	v.Set("base.qrid_name", "qrid")
	v.Set("polling_response_format.indicator", "status")
	v.Set("polling_response_format.value", map[string]interface{}{"unscanned": "0", "logged-in": 2})

	var options libs.Options
	options.Refresh = 7
	options.Output = "out"
	LoadConfig(v, &options)

	if options.Server.Bind != "127.0.0.1:5000" || options.Server.Username != "qrlchecker" {
		t.Errorf("Error loading server config: %v", options.Server)
	}
	if options.Refresh != 7 {
		t.Errorf("Flag value should win: %v", options.Refresh)
	}
	if options.ReplayTimeout != int(DefaultReplayTimeout.Seconds()) {
		t.Errorf("Error loading replay timeout: %v", options.ReplayTimeout)
	}
	if len(options.LocaleConstants) != 1 || options.LocaleConstants[0] != "zh-CN" {
		t.Errorf("Error loading locale constants: %v", options.LocaleConstants)
	}
	if options.DoneFlag != path.Join("out", "intermediate_files", "done_flag.txt") {
		t.Errorf("Error defaulting done flag: %v", options.DoneFlag)
	}
	if options.Target.TokenField != "qrid" || options.Target.StatusIndicator != "status" {
		t.Errorf("Error loading target: %v", options.Target)
	}
	if options.Target.StatusValues["logged-in"] != "2" {
		t.Errorf("Error loading status values: %v", options.Target.StatusValues)
	}
}

func TestLoadTargetJSON(t *testing.T) {
	dir, err := ioutil.TempDir("", "qrlchecker-config")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	filename := path.Join(dir, "target.json")
	data := `{
  "base": {
    "qrid_name": "uuid",
    "generation_url": "https://t.example.com/qr/create",
    "polling_url": "https://t.example.com/qr/status",
    "authorization_url": "https://app.example.com/qr/confirm"
  },
  "polling_response_format": {"indicator": "code", "value": {"unscanned": 408, "logged-in": 200}}
}`
	if err := ioutil.WriteFile(filename, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	var target libs.Target
	if err := LoadTargetJSON(filename, &target); err != nil {
		t.Fatalf("Error loading target json: %v", err)
	}
	if target.TokenField != "uuid" || target.PollingURL != "https://t.example.com/qr/status" {
		t.Errorf("Error loading base section: %v", target)
	}
	if target.AuthorizationURL != "https://app.example.com/qr/confirm" {
		t.Errorf("Error loading authorization url: %v", target.AuthorizationURL)
	}
	if target.StatusValues["unscanned"] != "408" || target.StatusIndicator != "code" {
		t.Errorf("Error loading status format: %v", target.StatusValues)
	}

	if err := LoadTargetJSON(path.Join(dir, "missing.json"), &target); err == nil {
		t.Errorf("Missing file should fail")
	}
}

func TestParseCredentials(t *testing.T) {
	data := []byte("phone_num: \"13800138000\"\nid_card: \"\"\nemail: a@example.com\n")
	secrets, err := ParseCredentials(data)
	if err != nil {
		t.Fatalf("Error parsing credentials: %v", err)
	}
	if len(secrets) != 2 {
		t.Fatalf("Blank values should be dropped: %v", secrets)
	}
	if secrets[0].Label != "phone_num" || secrets[0].Value != "13800138000" || secrets[1].Label != "email" {
		t.Errorf("Error keeping file order: %v", secrets)
	}

	if _, err := ParseCredentials([]byte("- a\n- b\n")); err == nil {
		t.Errorf("Non mapping credentials should fail")
	}
}
