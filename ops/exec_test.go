package ops

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}
	ctx := context.Background()
	cases := []struct {
		name      string
		exec      Exec
		expStdout string
		expStderr string
		expCode   int
	}{
		{
			name:      "stdout",
			exec:      Exec{Command: "sh", Args: []string{"-c", "echo hello"}},
			expStdout: "hello\n",
		},
		{
			name:      "stderr and exit code",
			exec:      Exec{Command: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}},
			expStderr: "oops\n",
			expCode:   3,
		},
		{
			name:      "env and working dir",
			exec:      Exec{Command: "sh", Args: []string{"-c", `echo "$GREETING $(pwd)"`}, Env: []string{"GREETING=hi"}, WD: "/"},
			expStdout: "hi /\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := tc.exec.Call(ctx)
			require.NoError(t, err)
			res := r.(ExecResult)
			assert.Equal(t, tc.expStdout, string(res.Stdout))
			assert.Equal(t, tc.expStderr, string(res.Stderr))
			assert.Equal(t, tc.expCode, res.ExitCode)
			assert.GreaterOrEqual(t, res.TimeMS, int64(0))
		})
	}

	_, err := Exec{Command: "/definitely/not/a/command"}.Call(ctx)
	assert.ErrorContains(t, err, "running /definitely/not/a/command")
}
