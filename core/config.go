package core

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path"

	"github.com/Jeffail/gabs/v2"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// InitConfig init config
func InitConfig(options *libs.Options) {
	options.RootFolder = utils.NormalizePath(options.RootFolder)
	// init new root folder
	if !utils.FolderExists(options.RootFolder) {
		utils.InforF("Init new config at %v", options.RootFolder)
		os.MkdirAll(options.RootFolder, 0750)
	}

	// DB connect
	var username, password string
	if !options.NoDB {
		dbPath := path.Join(options.RootFolder, "sqlite.db")
		fresh := !utils.FileExists(dbPath)
		if _, err := database.InitDB(dbPath); err != nil {
			utils.ErrorF("Error opening database %v: %v", dbPath, err)
			options.NoDB = true
		} else if fresh {
			// Create new user
			username = "qrlchecker"
			password = utils.GenHash(utils.GetTS())[:10]
			database.CreateUser(username, password)
			utils.GoodF("Create new credentials %v:%v", username, password)
		}
	}

	if options.ConfigFile == "" {
		options.ConfigFile = path.Join(options.RootFolder, "config.yaml")
	}
	configPath := utils.NormalizePath(options.ConfigFile)
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v, username, password)
	if !utils.FileExists(configPath) {
		utils.InforF("Write new config to: %v", configPath)
		v.WriteConfigAs(configPath)
	} else {
		if options.Debug {
			utils.InforF("Load config from: %v", configPath)
		}
		b, _ := ioutil.ReadFile(configPath)
		if err := v.ReadConfig(bytes.NewBuffer(b)); err != nil {
			utils.ErrorF("Error reading config %v: %v", configPath, err)
		}
	}
	LoadConfig(v, options)

	credPath := path.Join(options.RootFolder, "credentials.yaml")
	if !utils.FileExists(credPath) {
		WriteCredentialsTemplate(credPath)
	}
	if len(options.Secrets) == 0 {
		secrets, err := LoadCredentials(credPath)
		if err != nil {
			utils.ErrorF("Error reading credentials %v: %v", credPath, err)
		}
		options.Secrets = secrets
	}

	// store default credentials for the proxy addon
	addonConfigPath := path.Join(options.RootFolder, "addon.json")
	if !utils.FileExists(addonConfigPath) {
		jsonObj := gabs.New()
		jsonObj.Set("", "JWT")
		jsonObj.Set(v.GetString("username"), "username")
		jsonObj.Set(v.GetString("password"), "password")
		jsonObj.Set(fmt.Sprintf("http://%v/api", options.Server.Bind), "endpoint")
		utils.WriteToFile(addonConfigPath, jsonObj.String())
		if options.Verbose {
			utils.InforF("Store default credentials for client at: %v", addonConfigPath)
		}
	}
}

// SetDefaults default values of config.yaml
func SetDefaults(v *viper.Viper, username string, password string) {
	v.SetDefault("bind", "127.0.0.1:5000")
	// WARNING: change me if you really want to deploy on remote server
	v.SetDefault("cors", "*")
	v.SetDefault("username", username)
	v.SetDefault("password", password)
	v.SetDefault("secret", utils.GenHash(utils.GetTS()))
	v.SetDefault("app_marker", "")
	v.SetDefault("locale_constants", DefaultLocaleConstants)
	v.SetDefault("refresh", DefaultRefresh)
	v.SetDefault("replay_timeout", int(DefaultReplayTimeout.Seconds()))
	v.SetDefault("dictionary", "")
	v.SetDefault("done_flag", "")
	v.SetDefault("base", map[string]interface{}{
		"qrid_name":         "",
		"generation_url":    "",
		"polling_url":       "",
		"authorization_url": "",
	})
	v.SetDefault("polling_response_format", map[string]interface{}{
		"indicator": "",
		"value":     map[string]string{},
	})
}

// LoadConfig copy config values into options, flags already set win
func LoadConfig(v *viper.Viper, options *libs.Options) {
	options.Server.Bind = cast.ToString(v.Get("bind"))
	options.Server.Cors = cast.ToString(v.Get("cors"))
	options.Server.JWTSecret = cast.ToString(v.Get("secret"))
	if options.Server.Username == "" {
		options.Server.Username = cast.ToString(v.Get("username"))
	}
	if options.Server.Password == "" {
		options.Server.Password = cast.ToString(v.Get("password"))
	}

	if options.AppMarker == "" {
		options.AppMarker = cast.ToString(v.Get("app_marker"))
	}
	if len(options.LocaleConstants) == 0 {
		options.LocaleConstants = cast.ToStringSlice(v.Get("locale_constants"))
	}
	if options.Refresh <= 0 {
		options.Refresh = cast.ToInt(v.Get("refresh"))
	}
	if options.ReplayTimeout <= 0 {
		options.ReplayTimeout = cast.ToInt(v.Get("replay_timeout"))
	}
	if options.DictionaryFile == "" {
		options.DictionaryFile = utils.NormalizePath(cast.ToString(v.Get("dictionary")))
	}
	if options.DoneFlag == "" {
		options.DoneFlag = cast.ToString(v.Get("done_flag"))
	}
	if options.DoneFlag == "" {
		options.DoneFlag = path.Join(options.Output, "intermediate_files", "done_flag.txt")
	}

	target := &options.Target
	if target.TokenField == "" {
		target.TokenField = cast.ToString(v.Get("base.qrid_name"))
	}
	if target.GenerationURL == "" {
		target.GenerationURL = cast.ToString(v.Get("base.generation_url"))
	}
	if target.PollingURL == "" {
		target.PollingURL = cast.ToString(v.Get("base.polling_url"))
	}
	if target.AuthorizationURL == "" {
		target.AuthorizationURL = cast.ToString(v.Get("base.authorization_url"))
	}
	if target.StatusIndicator == "" {
		target.StatusIndicator = cast.ToString(v.Get("polling_response_format.indicator"))
	}
	if len(target.StatusValues) == 0 {
		target.StatusValues = cast.ToStringMapString(v.Get("polling_response_format.value"))
	}
}

// LoadTargetJSON read a per target JSON config, same shape as the base and
// polling_response_format sections of config.yaml
func LoadTargetJSON(filename string, target *libs.Target) error {
	data, err := ioutil.ReadFile(utils.NormalizePath(filename))
	if err != nil {
		return err
	}
	jsonParsed, err := gabs.ParseJSON(data)
	if err != nil {
		return fmt.Errorf("parse %v: %w", filename, err)
	}
	str := func(p string) string {
		if !jsonParsed.ExistsP(p) {
			return ""
		}
		return cast.ToString(jsonParsed.Path(p).Data())
	}
	target.TokenField = str("base.qrid_name")
	target.GenerationURL = str("base.generation_url")
	target.PollingURL = str("base.polling_url")
	target.AuthorizationURL = str("base.authorization_url")
	target.StatusIndicator = str("polling_response_format.indicator")
	if values, ok := jsonParsed.Path("polling_response_format.value").Data().(map[string]interface{}); ok {
		target.StatusValues = make(map[string]string)
		for k, v := range values {
			target.StatusValues[k] = cast.ToString(v)
		}
	}
	return nil
}
