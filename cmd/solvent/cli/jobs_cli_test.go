package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	cli, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Trigger(context.Background(), "reports:nightly", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")
}

func TestTriggerRejectsMalformedTenant(t *testing.T) {
	cli, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Trigger(context.Background(), "ledger:integrity_scan", "not-a-uuid")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid tenant id")
}

func TestNilClientGuards(t *testing.T) {
	var cli *JobsCLI
	_, err := cli.Trigger(context.Background(), "ledger:integrity_scan", "")
	require.Error(t, err)
	_, err = cli.InspectQueue(context.Background())
	require.Error(t, err)
	_, err = cli.ListScheduled(context.Background(), 5)
	require.Error(t, err)
}
