package callback

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestLogger_Debug(t *testing.T) {
	buf := captureLog(t)
	l := NewLogger(true)
	info := &callbacks.RunInfo{Name: "static", Type: "DashScope", Component: "Embedding"}

	l.OnStart(context.Background(), info, &embedding.CallbackInput{Texts: []string{"Effi", "Briest"}})
	l.OnEnd(context.Background(), info, &embedding.CallbackOutput{Embeddings: [][]float64{{1, 0, 0}, {0, 1, 0}}})

	out := buf.String()
	if !strings.Contains(out, "texts=2") {
		t.Errorf("start log = %q, want texts=2", out)
	}
	if !strings.Contains(out, "vectors=2 dim=3") {
		t.Errorf("end log = %q, want vectors=2 dim=3", out)
	}
}

func TestLogger_Quiet(t *testing.T) {
	buf := captureLog(t)
	l := NewLogger(false)
	info := &callbacks.RunInfo{Name: "static", Component: "Embedding"}

	l.OnStart(context.Background(), info, &embedding.CallbackInput{Texts: []string{"Effi"}})
	if buf.Len() != 0 {
		t.Errorf("unexpected log in quiet mode: %q", buf.String())
	}

	l.OnError(context.Background(), info, errors.New("quota exceeded"))
	if !strings.Contains(buf.String(), "quota exceeded") {
		t.Errorf("error log = %q", buf.String())
	}
}
