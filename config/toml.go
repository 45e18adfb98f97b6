package config

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"text/template"

	"github.com/cometbft/cometbft/config"
	"github.com/pkg/errors"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

//go:embed app.toml.tpl
var appConfigTemplate string

var appTemplate = template.Must(template.New("appConfigTemplate").Parse(appConfigTemplate))

// WriteConfigFile renders the cometbft section followed by the [app] section.
func WriteConfigFile(configFilePath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configFilePath), DefaultDirPerm); err != nil {
		return err
	}
	config.WriteConfigFile(configFilePath, cfg.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, cfg); err != nil {
		return errors.Wrap(err, "render app config")
	}
	f, err := os.OpenFile(configFilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buffer.Bytes())
	return err
}
