package core

import (
	"fmt"
	"io/ioutil"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

const credentialsTemplate = `# secrets of the scanning account, checked by F5 and F6
phone_num: ""
id_card: ""
`

// LoadCredentials read secret labels and values in file order
func LoadCredentials(filename string) ([]libs.Secret, error) {
	data, err := ioutil.ReadFile(utils.NormalizePath(filename))
	if err != nil {
		return nil, err
	}
	return ParseCredentials(data)
}

// ParseCredentials parse a flat YAML mapping, blank values are dropped
func ParseCredentials(data []byte) ([]libs.Secret, error) {
	var items yaml.MapSlice
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	var secrets []libs.Secret
	for _, item := range items {
		value := cast.ToString(item.Value)
		if value == "" {
			continue
		}
		secrets = append(secrets, libs.Secret{Label: cast.ToString(item.Key), Value: value})
	}
	return secrets, nil
}

// WriteCredentialsTemplate write a blank credentials file
func WriteCredentialsTemplate(filename string) {
	utils.InforF("Write credentials template to: %v", filename)
	if _, err := utils.WriteToFile(filename, credentialsTemplate); err != nil {
		utils.ErrorF("Error writing %v: %v", filename, err)
	}
}
