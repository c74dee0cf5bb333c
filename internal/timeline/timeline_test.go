package timeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeClock(t *testing.T, times ...time.Time) func() {
	i := 0
	orig := now
	now = func() time.Time {
		tm := times[i]
		if i < len(times)-1 {
			i++
		}
		return tm
	}
	return func() { now = orig }
}

func TestPhaseNesting(t *testing.T) {
	base := time.Now()
	restore := fakeClock(t,
		base, // root start
		base.Add(1*time.Second), // child start
		base.Add(3*time.Second), // child end
		base.Add(4*time.Second), // root end
	)
	defer restore()

	r := New()
	err := r.Phase("build", func() error {
		return r.Phase("compile A", func() error {
			return nil
		})
	})
	require.NoError(t, err)

	require.Equal(t, "build", r.Root.Tag)
	require.Equal(t, 4*time.Second, r.Root.Duration())
	require.Len(t, r.Root.Children, 1)
	require.Equal(t, "compile A", r.Root.Children[0].Tag)
	require.Equal(t, 2*time.Second, r.Root.Children[0].Duration())
}

func TestPhasePropagatesTaskError(t *testing.T) {
	r := New()
	want := errors.New("boom")
	err := r.Phase("build", func() error { return want })
	require.ErrorIs(t, err, want)
	require.NotNil(t, r.Root)
}

func TestRenderPercentages(t *testing.T) {
	base := time.Now()
	restore := fakeClock(t,
		base,
		base.Add(1*time.Second),
		base.Add(3*time.Second),
		base.Add(4*time.Second),
	)
	defer restore()

	r := New()
	require.NoError(t, r.Phase("build", func() error {
		return r.Phase("compile A", func() error { return nil })
	}))

	var buf bytes.Buffer
	Render(&buf, r.Root)
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "100% - build\n"))
	require.Contains(t, out, "50% - compile A\n")
}

func TestRenderNilRoot(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, nil)
	require.Empty(t, buf.String())
}
