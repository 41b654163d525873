// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMeilisearchImage is pinned to the minor release the client is
	// written against.
	DefaultMeilisearchImage = "getmeili/meilisearch:v1.11"

	// DefaultMeilisearchPort is Meilisearch's HTTP port.
	DefaultMeilisearchPort = "7700"

	// DefaultMasterKey must be at least 16 bytes.
	DefaultMasterKey = "integration-master-key-0123456789"
)

// MeilisearchContainer is a running Meilisearch instance.
type MeilisearchContainer struct {
	testcontainers.Container
	URL       string
	MasterKey string
}

// MeilisearchOption configures the container.
type MeilisearchOption func(*meilisearchConfig)

type meilisearchConfig struct {
	image        string
	masterKey    string
	startTimeout time.Duration
}

// WithMeilisearchImage overrides the image.
func WithMeilisearchImage(image string) MeilisearchOption {
	return func(c *meilisearchConfig) {
		c.image = image
	}
}

// WithMasterKey sets the master key.
func WithMasterKey(key string) MeilisearchOption {
	return func(c *meilisearchConfig) {
		c.masterKey = key
	}
}

// WithStartTimeout bounds the wait for /health.
func WithStartTimeout(timeout time.Duration) MeilisearchOption {
	return func(c *meilisearchConfig) {
		c.startTimeout = timeout
	}
}

// NewMeilisearchContainer starts Meilisearch in development mode with a
// master key and waits for /health.
//
//	meili, err := testinfra.NewMeilisearchContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(ctx, t, meili.Container)
//
//	client := search.NewClient(&config.SearchConfig{URL: meili.URL, MasterKey: meili.MasterKey, ...})
func NewMeilisearchContainer(ctx context.Context, opts ...MeilisearchOption) (*MeilisearchContainer, error) {
	cfg := &meilisearchConfig{
		image:        DefaultMeilisearchImage,
		masterKey:    DefaultMasterKey,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMeilisearchPort + "/tcp"},
		Env: map[string]string{
			"MEILI_ENV":          "development",
			"MEILI_MASTER_KEY":   cfg.masterKey,
			"MEILI_NO_ANALYTICS": "true",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMeilisearchPort+"/tcp"),
			wait.ForHTTP("/health").WithPort(DefaultMeilisearchPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create meilisearch container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultMeilisearchPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MeilisearchContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
		MasterKey: cfg.masterKey,
	}, nil
}
