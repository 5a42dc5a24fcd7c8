package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opgate/server"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func (a *Arith) Div(args *Args, reply *Reply) error {
	if args.B == 0 {
		return server.Errorf(http.StatusUnprocessableEntity, "DIV_BY_ZERO", "division by zero")
	}
	reply.Result = args.A / args.B
	return nil
}

func startGateway(t *testing.T) string {
	t.Helper()
	svr := server.NewServer()
	require.NoError(t, svr.Register(&Arith{}))
	svr.RegisterStream("Feed", func(ctx context.Context, req *server.StreamRequest, send func(any) error) error {
		for _, v := range []int{1, 2} {
			if err := send(v); err != nil {
				return err
			}
		}
		return server.Errorf(http.StatusConflict, "CLOSED", "feed closed")
	})
	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + server.OperationsPath
}

func runApp(t *testing.T, args ...string) (*app, string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, a := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := execute(context.Background(), cmd, a)
	return a, stdout.String(), stderr.String(), err
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	_, stdout, stderr, err := runApp(t, args...)
	return stdout, stderr, err
}

func TestQueryCommand(t *testing.T) {
	base := startGateway(t)

	stdout, _, err := run(t, "query", "Arith.Add", "--vars", `{"A":2,"B":3}`, "--base-url", base)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Result":5}`, strings.TrimSpace(stdout))
}

func TestMutateCommandError(t *testing.T) {
	base := startGateway(t)

	_, _, err := run(t, "mutate", "Arith.Div", "--vars", `{"A":2,"B":0}`, "--base-url", base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestInvalidVars(t *testing.T) {
	base := startGateway(t)

	_, _, err := run(t, "query", "Arith.Add", "--vars", `{`, "--base-url", base)
	assert.ErrorContains(t, err, "--vars")
}

func TestSubscribeCommand(t *testing.T) {
	base := startGateway(t)

	stdout, stderr, err := run(t, "subscribe", "Feed", "--framing", "line", "--base-url", base)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", stdout)
	assert.Contains(t, stderr, "feed closed")
}

func TestBadConfig(t *testing.T) {
	_, _, err := run(t, "live", "Feed", "--balancer", "nope")
	assert.Error(t, err)
}

func TestShutdownAfterFailedCall(t *testing.T) {
	base := startGateway(t)

	a, _, _, err := runApp(t, "mutate", "Arith.Div", "--vars", `{"A":1,"B":0}`, "--base-url", base)
	require.Error(t, err)
	require.NotNil(t, a.client, "setup ran")
	assert.Nil(t, a.close, "connections released")
	assert.NoError(t, a.shutdown())
}
