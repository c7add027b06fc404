package infra

import (
	"context"
	"fmt"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// AWSStack wraps a localstack container used by integration tests.
type AWSStack struct {
	C *localstack.LocalStackContainer
}

// StartLocalstack starts a localstack container and returns its endpoint URL.
// If INTEGRATION_AWS_ENDPOINT is set, it reuses that endpoint instead.
func StartLocalstack(ctx context.Context) (*AWSStack, string, error) {
	if endpoint := os.Getenv("INTEGRATION_AWS_ENDPOINT"); endpoint != "" {
		return &AWSStack{}, endpoint, nil
	}

	c, err := localstack.Run(ctx, "localstack/localstack:3.8")
	if err != nil {
		return nil, "", err
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	port, err := c.MappedPort(ctx, "4566/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}

	return &AWSStack{C: c}, fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func (a *AWSStack) Terminate(ctx context.Context) error {
	if a == nil || a.C == nil {
		return nil
	}
	return a.C.Terminate(ctx)
}
