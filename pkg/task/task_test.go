package task_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/task"
)

func TestValidateCronRejectsMalformedExpression(t *testing.T) {
	require.NoError(t, task.ValidateCron("*/5 * * * *"))

	err := task.ValidateCron("not a cron expression")
	require.Error(t, err)
	var ns errtypes.IsNotSupported
	require.ErrorAs(t, err, &ns)
}
