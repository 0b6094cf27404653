// Package ibovtech is a small Go client for a running ibov-scheduler.
package ibovtech

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PipelineService is the health service that reflects the outcome of the
// most recent pipeline run.
const PipelineService = "ibovtech.pipeline"

// Status is the health of a scheduler process.
type Status struct {
	Process  string
	Pipeline string
}

// Healthy reports whether both the process and the last run are serving.
func (s Status) Healthy() bool {
	return s.Process == "SERVING" && s.Pipeline == "SERVING"
}

// Client queries the scheduler's gRPC health endpoint.
type Client struct {
	addr string
	opts []grpc.DialOption
}

// NewClient creates a client for addr. Connections are plaintext unless opts
// override the transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) *Client {
	return &Client{
		addr: addr,
		opts: append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
	}
}

// Status checks both the process and the pipeline service.
func (c *Client) Status(ctx context.Context) (Status, error) {
	conn, err := grpc.NewClient(c.addr, c.opts...)
	if err != nil {
		return Status{}, fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	hc := healthpb.NewHealthClient(conn)
	var st Status
	for _, q := range []struct {
		service string
		dst     *string
	}{{"", &st.Process}, {PipelineService, &st.Pipeline}} {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: q.service})
		if err != nil {
			return Status{}, fmt.Errorf("checking %q: %w", q.service, err)
		}
		*q.dst = resp.GetStatus().String()
	}
	return st, nil
}
