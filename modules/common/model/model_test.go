package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampScoreAlwaysInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 1000; i++ {
		s := (r.Float64() - 0.5) * 100
		got := ClampScore(s)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 10.0)
	}
	assert.Equal(t, 0.0, ClampScore(math.NaN()))
	assert.Equal(t, 7.3, ClampScore(7.26))
	assert.Equal(t, 10.0, ClampScore(42))
}

func TestGenerationRunAppendOnly(t *testing.T) {
	run := NewGenerationRun("Diwali family poster", "9:16")
	run.AppendImages(PosterImage{ID: "a"}, PosterImage{ID: "b"})

	snapshot := run.Images()
	snapshot[0].ID = "mutated"
	assert.Equal(t, "a", run.Images()[0].ID)

	assert.True(t, run.AppendEvaluation(EvaluationResult{Iteration: 0}))
	assert.True(t, run.AppendEvaluation(EvaluationResult{Iteration: 1}))
	assert.False(t, run.AppendEvaluation(EvaluationResult{Iteration: 0}))
	assert.Len(t, run.Evaluations(), 2)
}

func TestAttachPathKeepsOrderAndExistingPaths(t *testing.T) {
	run := NewGenerationRun("x", "1:1")
	run.AppendImages(PosterImage{ID: "a", Path: "/kept/a.png"}, PosterImage{ID: "b"}, PosterImage{ID: "c"})

	assert.Equal(t, 1, run.AttachPath("b", "/kept/b.png"))
	assert.Equal(t, 0, run.AttachPath("a", "/other/a.png"))
	assert.Equal(t, 0, run.AttachPath("missing", "/kept/x.png"))

	images := run.Images()
	assert.Equal(t, []string{"a", "b", "c"}, []string{images[0].ID, images[1].ID, images[2].ID})
	assert.Equal(t, "/kept/a.png", images[0].Path)
	assert.Equal(t, "/kept/b.png", images[1].Path)
	assert.Empty(t, images[2].Path)
}
