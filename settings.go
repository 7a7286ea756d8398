// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"io"
	"strconv"

	"fadeout/internal/config"
	"fadeout/internal/fade"
	applog "fadeout/internal/log"
)

// openSettings opens the settings database with the plugin defaults
// registered, so commands see the same values a running player would.
func openSettings(cfg *config.Config) (*config.Store, error) {
	store, err := config.OpenStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	store.SetDefaults(fade.ConfigSection, map[string]string{
		fade.ConfigKeyDuration: strconv.FormatFloat(fade.DefaultDuration, 'g', -1, 64),
	})
	return store, nil
}

func configGet(cfg *config.Config, out io.Writer) error {
	store, err := openSettings(cfg)
	if err != nil {
		return err
	}
	value, err := store.GetString(fade.ConfigSection, cfg.Args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

func configSet(cfg *config.Config) error {
	store, err := openSettings(cfg)
	if err != nil {
		return err
	}
	store.SetString(fade.ConfigSection, cfg.Args[0], cfg.Args[1])
	if err := store.Save(); err != nil {
		return err
	}
	applog.Infof("Stored %s/%s = %s in %s", fade.ConfigSection, cfg.Args[0], cfg.Args[1], store.Path())
	return nil
}
