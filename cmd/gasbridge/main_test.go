package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gasbridge/pkg/config"
	"github.com/robotalks/gasbridge/pkg/framework"
	"github.com/robotalks/gasbridge/pkg/recorder"
)

func TestExitCode(t *testing.T) {
	testCases := []struct {
		err  error
		code int
	}{
		{nil, exitOK},
		{config.NewError(errors.New("link: port required")), exitConfig},
		{&recorder.StorageError{Dir: "/data", Err: errors.New("read-only")}, exitStorage},
		{fmt.Errorf("bridge: %w", &recorder.StorageError{Dir: "/data"}), exitStorage},
		{framework.ErrForcedExit, exitRuntime},
		{errors.New("boom"), exitRuntime},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.code, exitCode(tc.err), "%v", tc.err)
	}
}
