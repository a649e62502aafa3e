package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	type rawAPI struct {
		BaseURL     json.RawMessage `json:"baseURL"`
		Host        json.RawMessage `json:"host"`
		Timeout     string          `json:"timeout"`
		RefreshPath string          `json:"refreshPath"`
		RateLimit   float64         `json:"rateLimit"`
		RateBurst   int             `json:"rateBurst"`
		UserAgent   string          `json:"userAgent"`
	}

	var raw rawAPI
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.RefreshPath = raw.RefreshPath
	a.RateLimit = raw.RateLimit
	a.RateBurst = raw.RateBurst
	a.UserAgent = raw.UserAgent

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		a.Timeout = timeout
	}
	if err := parseOptional(raw.BaseURL, "baseURL", &a.BaseURL); err != nil {
		return err
	}
	return parseOptional(raw.Host, "host", &a.Host)
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		Storage       string           `json:"storage"`
		Path          json.RawMessage  `json:"path"`
		Namespace     json.RawMessage  `json:"namespace"`
		EncryptionKey json.RawMessage  `json:"encryptionKey"`
		Redis         *RedisConfig     `json:"redis"`
		Firestore     *FirestoreConfig `json:"firestore"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Storage = raw.Storage
	s.Redis = raw.Redis
	s.Firestore = raw.Firestore

	if err := parseOptional(raw.Path, "path", &s.Path); err != nil {
		return err
	}
	if err := parseOptional(raw.Namespace, "namespace", &s.Namespace); err != nil {
		return err
	}
	var key string
	if err := parseOptional(raw.EncryptionKey, "encryptionKey", &key); err != nil {
		return err
	}
	s.EncryptionKey = Secret(key)
	return nil
}

// UnmarshalJSON implements custom unmarshaling for RedisConfig
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	type rawRedis struct {
		Addr     json.RawMessage `json:"addr"`
		Password json.RawMessage `json:"password"`
		DB       int             `json:"db"`
		Prefix   string          `json:"prefix"`
	}

	var raw rawRedis
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.DB = raw.DB
	r.Prefix = raw.Prefix
	if err := parseOptional(raw.Addr, "redis addr", &r.Addr); err != nil {
		return err
	}
	var password string
	if err := parseOptional(raw.Password, "redis password", &password); err != nil {
		return err
	}
	r.Password = Secret(password)
	return nil
}

// UnmarshalJSON implements custom unmarshaling for FirestoreConfig
func (f *FirestoreConfig) UnmarshalJSON(data []byte) error {
	type rawFirestore struct {
		ProjectID       json.RawMessage `json:"projectId"`
		Database        string          `json:"database"`
		Collection      string          `json:"collection"`
		CredentialsFile json.RawMessage `json:"credentialsFile"`
	}

	var raw rawFirestore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Database = raw.Database
	f.Collection = raw.Collection
	if err := parseOptional(raw.ProjectID, "firestore projectId", &f.ProjectID); err != nil {
		return err
	}
	return parseOptional(raw.CredentialsFile, "firestore credentialsFile", &f.CredentialsFile)
}

// UnmarshalJSON implements custom unmarshaling for GoogleConfig
func (g *GoogleConfig) UnmarshalJSON(data []byte) error {
	type rawGoogle struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		CallbackPort int             `json:"callbackPort"`
	}

	var raw rawGoogle
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.CallbackPort = raw.CallbackPort
	if err := parseOptional(raw.ClientID, "google clientId", &g.ClientID); err != nil {
		return err
	}
	var secret string
	if err := parseOptional(raw.ClientSecret, "google clientSecret", &secret); err != nil {
		return err
	}
	g.ClientSecret = Secret(secret)
	return nil
}

// UnmarshalJSON implements custom unmarshaling for DownloadsConfig
func (d *DownloadsConfig) UnmarshalJSON(data []byte) error {
	type rawDownloads struct {
		Dir           json.RawMessage `json:"dir"`
		OpenAfterSave bool            `json:"openAfterSave"`
		Concurrency   int             `json:"concurrency"`
		Navigator     string          `json:"navigator"`
	}

	var raw rawDownloads
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.OpenAfterSave = raw.OpenAfterSave
	d.Concurrency = raw.Concurrency
	d.Navigator = raw.Navigator
	return parseOptional(raw.Dir, "downloads dir", &d.Dir)
}
