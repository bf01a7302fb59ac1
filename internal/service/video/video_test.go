package video

import (
	"context"
	"fmt"
	"testing"

	"github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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

func ytDlpArgs(url string) []string {
	return []string{"--get-url", "--format", "best[ext=mp4]/best", "--no-playlist", "--no-warnings", url}
}

func TestResolver_ResolvePlayableURL(t *testing.T) {
	const ytURL = "https://www.youtube.com/watch?v=abc123XYZ"

	tests := []struct {
		name       string
		sourceURL  string
		sourceType model.SourceType
		setup      func(*mockCmdRunner)
		want       string
		wantCode   string
	}{
		{
			name:       "direct url returned unchanged",
			sourceURL:  "https://cdn.example.com/talk.mp4",
			sourceType: model.SourceTypeDirect,
			setup:      func(m *mockCmdRunner) {},
			want:       "https://cdn.example.com/talk.mp4",
		},
		{
			name:       "youtube resolved via yt-dlp",
			sourceURL:  ytURL,
			sourceType: model.SourceTypeYouTube,
			setup: func(m *mockCmdRunner) {
				m.On("Run", mock.Anything, "yt-dlp", ytDlpArgs(ytURL)).
					Return([]byte("\nhttps://rr1.googlevideo.com/videoplayback?id=1\nhttps://rr1.googlevideo.com/audio\n"), nil)
			},
			want: "https://rr1.googlevideo.com/videoplayback?id=1",
		},
		{
			name:       "vimeo private video",
			sourceURL:  "https://vimeo.com/123456",
			sourceType: model.SourceTypeVimeo,
			setup: func(m *mockCmdRunner) {
				m.On("Run", mock.Anything, "yt-dlp", ytDlpArgs("https://vimeo.com/123456")).
					Return(nil, fmt.Errorf("ERROR: Private video"))
			},
			wantCode: errors.CodeExternal,
		},
		{
			name:       "yt-dlp prints nothing usable",
			sourceURL:  ytURL,
			sourceType: model.SourceTypeYouTube,
			setup: func(m *mockCmdRunner) {
				m.On("Run", mock.Anything, "yt-dlp", ytDlpArgs(ytURL)).Return([]byte("WARNING: nothing\n"), nil)
			},
			wantCode: errors.CodeMalformed,
		},
		{
			name:       "empty url",
			sourceType: model.SourceTypeDirect,
			setup:      func(m *mockCmdRunner) {},
			wantCode:   errors.CodeValidation,
		},
		{
			name:       "not http",
			sourceURL:  "ftp://files.example.com/talk.mp4",
			sourceType: model.SourceTypeDirect,
			setup:      func(m *mockCmdRunner) {},
			wantCode:   errors.CodeValidation,
		},
		{
			name:       "unknown source type",
			sourceURL:  "https://cdn.example.com/talk.mp4",
			sourceType: model.SourceType("dropbox"),
			setup:      func(m *mockCmdRunner) {},
			wantCode:   errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockCmdRunner)
			tt.setup(runner)
			r := NewResolverWithCmdRunner(runner)

			got, err := r.ResolvePlayableURL(context.Background(), tt.sourceURL, tt.sourceType)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			runner.AssertExpectations(t)
		})
	}
}

func TestFormatYtDlpError(t *testing.T) {
	tests := []struct {
		errMsg   string
		url      string
		contains string
	}{
		{"ERROR: Video unavailable", "", "not available"},
		{`exec: "yt-dlp": executable file not found in $PATH`, "", "not installed"},
		{"HTTP Error 404: Not Found", "", "video not found"},
		{"HTTP Error 429", "", "rate limited"},
		{"boom", "https://www.youtube.com/watch?v=abc&t=3", "failed to resolve video 'abc' - boom"},
		{"boom", "https://youtu.be/xyz", "failed to resolve video 'xyz'"},
		{"boom", "https://cdn.example.com/a.mp4", "video resolution failed - boom"},
	}
	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			assert.Contains(t, formatYtDlpError(fmt.Errorf("%s", tt.errMsg), tt.url), tt.contains)
		})
	}
}
