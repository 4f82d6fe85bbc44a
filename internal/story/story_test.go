package story

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(scenes int) Request {
	return Request{Title: "Mina", Age: 5, Theme: "sky kites", Moral: "kindness", Minutes: 1, Scenes: scenes}
}

func TestComposeIsDeterministic(t *testing.T) {
	a := Compose(sampleRequest(6))
	b := Compose(sampleRequest(6))
	assert.Equal(t, a, b)

	other := sampleRequest(6)
	other.Age = 6
	assert.NotEqual(t, a.Scenes, Compose(other).Scenes, "changing any input should reshuffle the picks")
}

func TestComposeSceneCounts(t *testing.T) {
	for _, n := range []int{1, 6, 20} {
		t.Run(fmt.Sprintf("scenes=%d", n), func(t *testing.T) {
			s := Compose(sampleRequest(n))
			require.Len(t, s.Scenes, n)
			for _, sc := range s.Scenes {
				assert.GreaterOrEqual(t, sc.Duration, MinSceneSeconds)
				assert.LessOrEqual(t, sc.Duration, MaxSceneSeconds)
				assert.NotEmpty(t, sc.Text)
				assert.NotEmpty(t, sc.Prompt)
			}
		})
	}
}

func TestComposeSkeleton(t *testing.T) {
	one := Compose(sampleRequest(1))
	assert.Contains(t, one.Scenes[0].Text, "Introduce Mina in a cozy place related to sky kites.")

	long := Compose(sampleRequest(10))
	last := long.Scenes[len(long.Scenes)-1].Text
	assert.Contains(t, last, Morals["kindness"])
	assert.Contains(t, long.Scenes[7].Text, "They notice something wonderful around them.")
	assert.Contains(t, long.Scenes[8].Text, "They notice something wonderful around them.")
	assert.Contains(t, long.Scenes[6].Text, "The problem is solved kindly.")
}

func TestComposeNormalizesSceneCount(t *testing.T) {
	s := Compose(sampleRequest(0))
	assert.Len(t, s.Scenes, 1)
}

func TestComposeTitleAndUnknownMoral(t *testing.T) {
	req := sampleRequest(8)
	req.Moral = "Patience pays off."
	s := Compose(req)
	assert.Equal(t, "Mina: A Sky Kites Adventure", s.Title)
	assert.Contains(t, s.Scenes[7].Text, "Patience pays off.")
}

func TestSceneDuration(t *testing.T) {
	assert.InDelta(t, 3.5, SceneDuration(1, 20), 1e-9)
	assert.InDelta(t, 10.0, SceneDuration(3, 6), 1e-9)
	assert.InDelta(t, 7.5, SceneDuration(1, 8), 1e-9)
	assert.InDelta(t, 10.0, SceneDuration(1, 0), 1e-9)
}

func ollamaServer(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"response": %q}`, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaParsesModelStory(t *testing.T) {
	payload := "```json\n" + `{"title":"Mina Flies","scenes":[{"text":"Mina finds a kite.","prompt":"girl with kite"},{"text":"The wind helps.","prompt":""}]}` + "\n```"
	srv := ollamaServer(t, payload, http.StatusOK)

	s, err := NewOllama(srv.URL, "llama3.1:8b", time.Second).Generate(context.Background(), sampleRequest(2))
	require.NoError(t, err)
	assert.Equal(t, "Mina Flies", s.Title)
	require.Len(t, s.Scenes, 2)
	assert.Equal(t, "girl with kite", s.Scenes[0].Prompt)
	assert.Equal(t, DefaultPrompt, s.Scenes[1].Prompt)
	assert.InDelta(t, 10.0, s.Scenes[0].Duration, 1e-9)
}

func TestOllamaTruncatesAndPads(t *testing.T) {
	var scenes []string
	for i := 0; i < 5; i++ {
		scenes = append(scenes, fmt.Sprintf(`{"text":"scene %d","prompt":"p"}`, i))
	}
	payload := `Here you go: {"title":"T","scenes":[` + strings.Join(scenes, ",") + `]} enjoy`
	srv := ollamaServer(t, payload, http.StatusOK)
	client := NewOllama(srv.URL, "m", time.Second)

	short, err := client.Generate(context.Background(), sampleRequest(3))
	require.NoError(t, err)
	require.Len(t, short.Scenes, 3)
	assert.Equal(t, "scene 2", short.Scenes[2].Text)

	long, err := client.Generate(context.Background(), sampleRequest(7))
	require.NoError(t, err)
	require.Len(t, long.Scenes, 7)
	assert.Equal(t, "scene 4", long.Scenes[4].Text)
	assert.Equal(t, Compose(sampleRequest(7)).Scenes[5], long.Scenes[5])
}

func TestOllamaFailuresFallBackToRuleBased(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
	}{
		{"not json", "once upon a time", http.StatusOK},
		{"empty scenes", `{"title":"x","scenes":[]}`, http.StatusOK},
		{"empty text", `{"title":"x","scenes":[{"text":" ","prompt":"p"}]}`, http.StatusOK},
		{"server error", `{}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := ollamaServer(t, tt.response, tt.status)
			engine := WithFallback(NewOllama(srv.URL, "m", time.Second), zerolog.Nop())

			s, err := engine.Generate(context.Background(), sampleRequest(4))
			require.NoError(t, err)
			assert.Equal(t, Compose(sampleRequest(4)), s)
		})
	}
}

func TestOllamaTimeoutFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	engine := WithFallback(NewOllama(srv.URL, "m", 50*time.Millisecond), zerolog.Nop())
	s, err := engine.Generate(context.Background(), sampleRequest(3))
	require.NoError(t, err)
	assert.Equal(t, Compose(sampleRequest(3)), s)
}

func TestOllamaUnreachableFallsBack(t *testing.T) {
	engine := WithFallback(NewOllama("http://127.0.0.1:1", "m", time.Second), zerolog.Nop())
	s, err := engine.Generate(context.Background(), sampleRequest(2))
	require.NoError(t, err)
	assert.Len(t, s.Scenes, 2)
}

func TestStoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.yaml")
	original := Compose(sampleRequest(3))
	require.NoError(t, WriteFile(path, original))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestReadFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.yaml")
	require.NoError(t, WriteFile(path, Story{Title: "t", Scenes: []Scene{{Text: "hello"}}}))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, loaded.Scenes[0].Prompt)
	assert.InDelta(t, MinSceneSeconds, loaded.Scenes[0].Duration, 1e-9)

	require.NoError(t, WriteFile(path, Story{Title: "t"}))
	_, err = ReadFile(path)
	assert.Error(t, err)
}
