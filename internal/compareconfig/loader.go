package compareconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML profile; an empty path returns Default()
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
// Omitted sections keep their Default() values.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	// models 는 병합하지 않고 YAML 목록으로 교체
	defaults := p.Models
	p.Models = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.Models == nil {
		p.Models = defaults
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Hash generates SHA256 hash of the profile (canonical YAML)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(p *Profile) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
