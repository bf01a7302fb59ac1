package transcription

import (
	"context"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/mock"
)

// mockCmdRunner for testing
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	argsMock := m.Called(ctx, name, args)
	if argsMock.Get(0) == nil {
		return nil, argsMock.Error(1)
	}
	return argsMock.Get(0).([]byte), argsMock.Error(1)
}

// argAfter returns the value following flag in args
func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// writeWhisperJSON writes body into the --output_dir passed to the mocked command
func writeWhisperJSON(body string) func(mock.Arguments) {
	return func(a mock.Arguments) {
		dir := argAfter(a.Get(2).([]string), "--output_dir")
		_ = os.WriteFile(filepath.Join(dir, "video.json"), []byte(body), 0644)
	}
}
