package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"token-vesting-go/internal/models"

	"gopkg.in/yaml.v2"
)

const (
	BackendLocal    = "local"
	BackendFormance = "formance"

	TransportGRPC   = "grpc"
	TransportHTTP   = "http"
	TransportStatic = "static"
)

func LoadDeployment(deploymentFile string) (*models.Deployment, error) {
	var deploymentPath string
	if filepath.IsAbs(deploymentFile) {
		deploymentPath = deploymentFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		deploymentPath = filepath.Join(wd, deploymentFile)
	}

	data, err := os.ReadFile(deploymentPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", deploymentFile, err)
	}

	return ParseDeployment(data)
}

func ParseDeployment(data []byte) (*models.Deployment, error) {
	var d models.Deployment
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unable to parse deployment: %w", err)
	}

	if d.VesterAccount == "" {
		return nil, fmt.Errorf("deployment missing vester_account")
	}
	if _, err := models.ParseAccount(d.VesterAccount); err != nil {
		return nil, fmt.Errorf("vester_account: %w", err)
	}
	if d.Owner != "" {
		if _, err := models.ParseAccount(d.Owner); err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
	}

	if len(d.Assets) == 0 {
		d.Assets = []models.AssetDeployment{{Id: "native", Symbol: "NATIVE", Backend: BackendLocal}}
	}

	seen := make(map[string]bool)
	for i := range d.Assets {
		asset := &d.Assets[i]
		if asset.Id == "" {
			return nil, fmt.Errorf("asset at index %d missing id", i)
		}
		if _, err := models.ParseAssetRef(asset.Id); err != nil {
			return nil, fmt.Errorf("asset at index %d: %w", i, err)
		}
		if seen[strings.ToLower(asset.Id)] {
			return nil, fmt.Errorf("asset at index %d duplicates id %s", i, asset.Id)
		}
		seen[strings.ToLower(asset.Id)] = true
		if asset.Backend == "" {
			asset.Backend = BackendLocal
		}
		if asset.Backend != BackendLocal && asset.Backend != BackendFormance {
			return nil, fmt.Errorf("asset %s has unknown backend %q", asset.Id, asset.Backend)
		}
		if asset.Backend == BackendFormance && asset.Symbol == "" {
			return nil, fmt.Errorf("formance asset %s missing symbol", asset.Id)
		}
		for _, denied := range asset.Deny {
			if _, err := models.ParseAccount(denied); err != nil {
				return nil, fmt.Errorf("asset %s deny list: %w", asset.Id, err)
			}
		}
	}

	for i, oracle := range d.Oracles {
		if _, err := models.ParseAccount(oracle.Account); err != nil {
			return nil, fmt.Errorf("oracle at index %d: %w", i, err)
		}
		switch oracle.Transport {
		case TransportGRPC, TransportHTTP:
			if oracle.Endpoint == "" {
				return nil, fmt.Errorf("oracle at index %d missing endpoint", i)
			}
		case TransportStatic:
			if oracle.Start > oracle.End {
				return nil, fmt.Errorf("oracle at index %d has start after end", i)
			}
		default:
			return nil, fmt.Errorf("oracle at index %d has unknown transport %q", i, oracle.Transport)
		}
	}

	return &d, nil
}
