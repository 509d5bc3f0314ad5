// Package seed はYAMLファイルからソースレジストリの初期データを読み込む。
package seed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/newsroom/internal/model"
)

// DefaultSourceType はtype省略時のソース種別。
const DefaultSourceType = "rss"

// fileFormat はシードファイルの構造。
type fileFormat struct {
	Sources []entry `yaml:"sources"`
}

// entry はシードファイルの1ソース。activeを省略した場合は有効として扱う。
type entry struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Type   string `yaml:"type"`
	Active *bool  `yaml:"active"`
}

// Sink はソースをまとめて登録する。
type Sink interface {
	CreateMany(ctx context.Context, sources []model.NewSource) (int, error)
}

// LoadFile はpathのYAMLファイルを読み込み、登録用のソース一覧を返す。
func LoadFile(path string) ([]model.NewSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("seed file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse はYAMLを解析してソース一覧を返す。
// nameとurlは必須で、urlは絶対http(s) URLでなければならない。
func Parse(raw []byte) ([]model.NewSource, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}

	sources := make([]model.NewSource, 0, len(f.Sources))
	for i, e := range f.Sources {
		name := strings.TrimSpace(e.Name)
		rawURL := strings.TrimSpace(e.URL)
		if name == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		if err := validateURL(rawURL); err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, name, err)
		}

		sourceType := strings.TrimSpace(e.Type)
		if sourceType == "" {
			sourceType = DefaultSourceType
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}

		sources = append(sources, model.NewSource{
			Name:     name,
			URL:      rawURL,
			Type:     sourceType,
			IsActive: active,
		})
	}
	return sources, nil
}

// Apply はpathのシードファイルを読み込んでsinkに登録し、新規登録件数を返す。
func Apply(ctx context.Context, sink Sink, path string) (int, error) {
	sources, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	if len(sources) == 0 {
		return 0, nil
	}
	created, err := sink.CreateMany(ctx, sources)
	if err != nil {
		return 0, fmt.Errorf("register seed sources: %w", err)
	}
	return created, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL: %s", raw)
	}
	return nil
}
