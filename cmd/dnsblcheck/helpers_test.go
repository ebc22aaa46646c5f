package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nao1215/dnsblcheck/internal/digest"
)

var (
	cleanImage  = []byte("GIF89a green")
	listedImage = []byte("GIF89a red")
)

const formPage = `<html><body>
<form action="/check.php" method="post"><input name="IP"><input type="submit" name="go" value="Check"></form>
</body></html>`

const resultPage = `<html><body><table><tr>
<td><img src="/images/%s"> <a href="#">a.example</a></td>
<td><img src="/images/%s"> <a href="#">b.example</a></td>
<td><img src="/images/red.gif"> <a href="#">ips.backscatterer.org</a></td>
</tr></table></body></html>`

// testSite is a stand-in for the aggregator site. Hosts starting with
// "listed" are reported by provider b.example.
type testSite struct {
	*httptest.Server
	hits atomic.Int32

	// onImage, when set, runs before an image is served.
	onImage atomic.Pointer[func()]
}

func (s *testSite) imageRequested() {
	s.hits.Add(1)
	if hook := s.onImage.Load(); hook != nil {
		(*hook)()
	}
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, formPage)
	})
	mux.HandleFunc("/check.php", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		b := "green.gif"
		if host := r.FormValue("IP"); len(host) >= 6 && host[:6] == "listed" {
			b = "red.gif"
		}
		_, _ = fmt.Fprintf(w, resultPage, "green.gif", b)
	})
	mux.HandleFunc("/images/green.gif", func(w http.ResponseWriter, _ *http.Request) {
		site.imageRequested()
		_, _ = w.Write(cleanImage)
	})
	mux.HandleFunc("/images/red.gif", func(w http.ResponseWriter, _ *http.Request) {
		site.imageRequested()
		_, _ = w.Write(listedImage)
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

// writeTestConfig writes a configuration file whose reference digests
// match the test images and returns its path.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	content := fmt.Sprintf(`digests:
  clean: %s
  listed: %s
timeout: 5s
`, digest.SumBytes(cleanImage), digest.SumBytes(listedImage))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// runCLI executes the root command with args and returns stdout, stderr
// and the exit code Execute would return.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), exitCodeFor(err)
}
