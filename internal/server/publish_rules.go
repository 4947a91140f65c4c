package server

import (
	"errors"
	"os"
	"path/filepath"

	versioningservices "github.com/kestrelrisk/mrg-console/modules/versioning/services"
)

func loadPublishGuard() (*versioningservices.PublishGuard, error) {
	rulesPath := os.Getenv("PUBLISH_RULES_PATH")
	if rulesPath == "" {
		p, err := defaultPublishRulesPath()
		if err != nil {
			return nil, err
		}
		rulesPath = p
	}

	rs, err := versioningservices.LoadPublishRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return versioningservices.NewPublishGuard(rs)
}

func defaultPublishRulesPath() (string, error) {
	path := "config/governance/publish_rules.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: publish rules not found")
}
