// File: internal/runner/live_test.go
package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/browser"
	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/report"
)

// fixturePage is a minimal chat widget: echoes a canned bilingual reply
// after a short typing delay and renders submitted text inert.
const fixturePage = `<!doctype html>
<html dir="ltr">
<head><title>fixture chat</title></head>
<body>
  <div id="transcript"></div>
  <div class="loading" style="display:none">typing</div>
  <input type="text" id="msg">
  <button type="submit" class="send">Send</button>
  <script>
    const input = document.querySelector('#msg');
    const transcript = document.querySelector('#transcript');
    const loading = document.querySelector('.loading');
    function send() {
      const text = input.value;
      if (!text) { return; }
      input.value = '';
      const u = document.createElement('div');
      u.className = 'user-message';
      u.textContent = text;
      transcript.appendChild(u);
      loading.style.display = 'block';
      setTimeout(() => {
        loading.style.display = 'none';
        const a = document.createElement('div');
        a.className = 'ai-message';
        a.textContent = 'You can renew your Emirates ID online via the ICP portal. ' +
          'يمكنك التجديد عبر الموقع الرسمي.';
        transcript.appendChild(a);
      }, 300);
    }
    document.querySelector('button').addEventListener('click', send);
    input.addEventListener('keydown', (e) => { if (e.key === 'Enter') { send(); } });
  </script>
</body>
</html>`

// TestLiveRunAgainstFixture exercises the full stack, Chrome included,
// against a local fixture widget. Opt in with CHATPROBE_E2E=1.
func TestLiveRunAgainstFixture(t *testing.T) {
	if os.Getenv("CHATPROBE_E2E") != "1" {
		t.Skip("set CHATPROBE_E2E=1 to run the live browser test")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixturePage))
	}))
	defer srv.Close()

	cfg := config.NewDefaultConfig()
	cfg.Target.URL = srv.URL
	cfg.Target.WidgetGrace = 10 * time.Second
	cfg.Wait.PollInterval = 100 * time.Millisecond
	cfg.Wait.ReplyTimeout = 10 * time.Second
	cfg.Runner.Suites = []string{"ui", "responses", "security"}
	cfg.Runner.Concurrency = 2
	cfg.Runner.ScreenshotDir = t.TempDir()

	logger := zap.NewNop()
	manager := browser.NewManager(cfg, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	}()

	rec := report.NewRecorder(cfg.Runner.ScreenshotDir, logger)
	r := New(cfg, FromManager(manager), testData(), rec, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	passed, failed, _ := rec.Summary()
	assert.Zero(t, failed, "fixture widget must pass every check")
	assert.Equal(t, 6+7+2, passed)
}
