package assetlayer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func posterOf(t *testing.T, w, h int) model.PosterImage {
	t.Helper()
	p, err := utils.PosterFromImage(solid(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), model.SourceGenerated)
	require.NoError(t, err)
	return p
}

func TestFallbackSingleLogo(t *testing.T) {
	plan := FallbackPlan(1000, 1600, []Size{{400, 200}}, nil)

	require.Len(t, plan.Logos, 1)
	logo := plan.Logos[0]
	assert.Equal(t, 30, logo.X)
	assert.Equal(t, 30, logo.Y)
	assert.Equal(t, 120, logo.Width)
	assert.Equal(t, 60, logo.Height)
	assert.True(t, plan.Fallback)
	assert.InDelta(t, 0.6, plan.Confidence, 1e-9)
}

func TestFallbackSecondLogoTopRightAndThirdIgnored(t *testing.T) {
	plan := FallbackPlan(1000, 1600, []Size{{400, 200}, {100, 100}, {50, 50}}, nil)

	require.Len(t, plan.Logos, 2)
	second := Placed(plan.Logos[1], 1000, 1600)
	assert.Equal(t, 1000-30, second.Max.X)
	assert.Equal(t, 30, second.Min.Y)
	assert.Equal(t, 120, second.Dx())
	assert.Equal(t, 120, second.Dy())
}

func TestFallbackProductsBottomRowInside(t *testing.T) {
	plan := FallbackPlan(1000, 1600, nil, []Size{{300, 600}, {300, 300}, {300, 300}})

	require.Len(t, plan.Products, 3)
	for _, p := range plan.Products {
		r := Placed(p, 1000, 1600)
		assert.True(t, r.In(image.Rect(0, 0, 1000, 1600)), "product %d outside poster: %v", p.AssetIndex, r)
		assert.Equal(t, 1600-30, r.Max.Y)
	}
	// 350*3 > 940 이므로 균등 축소
	assert.Equal(t, 940/3, plan.Products[0].Width)
}

func TestResolveAnchor(t *testing.T) {
	cases := map[string][2]int{
		"top-left":      {100, 200},
		"":              {100, 200},
		"top-right":     {60, 200},
		"top-center":    {80, 200},
		"center":        {80, 190},
		"center-left":   {100, 190},
		"center-right":  {60, 190},
		"bottom-left":   {100, 180},
		"bottom-right":  {60, 180},
		"bottom-center": {80, 180},
		" Bottom-Right": {60, 180},
	}
	for anchor, want := range cases {
		x, y := ResolveAnchor(100, 200, 40, 20, anchor)
		assert.Equal(t, want, [2]int{x, y}, anchor)
	}
}

func TestClampKeepsAssetInside(t *testing.T) {
	x, y := Clamp(-10, 990, 100, 50, 500, 1000)
	assert.Equal(t, [2]int{0, 950}, [2]int{x, y})

	x, y = Clamp(480, -5, 100, 50, 500, 1000)
	assert.Equal(t, [2]int{400, 0}, [2]int{x, y})
}

func TestPlacedShrinksOversizedAsset(t *testing.T) {
	r := Placed(model.AssetPlacement{Width: 2000, Height: 1000, Anchor: "top-left"}, 500, 1000)
	assert.Equal(t, 500, r.Dx())
	assert.Equal(t, 250, r.Dy())
	assert.Equal(t, image.Pt(0, 0), r.Min)
}

func TestCompositeDrawsLogoOverProduct(t *testing.T) {
	base := solid(200, 200, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	red := solid(10, 10, color.NRGBA{R: 255, A: 255})
	blue := solid(10, 10, color.NRGBA{B: 255, A: 255})

	plan := model.PlacementPlan{
		Logos:    []model.AssetPlacement{{Kind: model.AssetLogo, AssetIndex: 0, X: 50, Y: 50, Width: 40, Height: 40}},
		Products: []model.AssetPlacement{{Kind: model.AssetProduct, AssetIndex: 0, X: 50, Y: 50, Width: 40, Height: 40}},
	}
	out := CompositeImage(base, []image.Image{red}, []image.Image{blue}, plan, CompositeOptions{})

	center := out.NRGBAAt(70, 70)
	assert.Greater(t, center.R, uint8(240))
	assert.Less(t, center.B, uint8(15))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(10, 10))
	assert.Equal(t, base.Bounds(), out.Bounds())
}

func TestCompositeSkipsUnknownIndex(t *testing.T) {
	base := solid(50, 50, color.NRGBA{A: 255})
	plan := model.PlacementPlan{Logos: []model.AssetPlacement{{Kind: model.AssetLogo, AssetIndex: 3, Width: 10, Height: 10}}}
	out := CompositeImage(base, nil, nil, plan, DefaultCompositeOptions())
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(5, 5))
}

func TestCompositeProducesOverlayPoster(t *testing.T) {
	poster := posterOf(t, 100, 160)
	logo := solid(40, 20, color.NRGBA{G: 200, A: 255})
	plan := FallbackPlan(100, 160, []Size{{40, 20}}, nil)

	out, err := Composite(poster, []image.Image{logo}, nil, plan, DefaultCompositeOptions())
	require.NoError(t, err)
	assert.Equal(t, model.SourceOverlay, out.Source)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 160, out.Height)
}

func TestParsePlan(t *testing.T) {
	raw := "```json\n" + `{"asset_placements": {
		"logos": [{"asset_index": 0, "position": {"x": 10, "y": 20, "anchor": "top-right"}, "size": {"width": 100}}],
		"products": [
			{"asset_index": 0, "position": {"x": 500, "y": 800, "anchor": "center"}, "size": {"scale_factor": 0.4}, "justification": "hero"},
			{"asset_index": 7, "position": {"x": 1, "y": 1}}
		]},
		"layout_confidence": 0.9}` + "\n```"

	plan, err := ParsePlan(raw, 1000, []Size{{200, 100}}, []Size{{300, 600}})
	require.NoError(t, err)

	require.Len(t, plan.Logos, 1)
	assert.Equal(t, "top-right", plan.Logos[0].Anchor)
	assert.Equal(t, 100, plan.Logos[0].Width)
	assert.Equal(t, 50, plan.Logos[0].Height)

	require.Len(t, plan.Products, 1)
	assert.Equal(t, 400, plan.Products[0].Width)
	assert.Equal(t, 800, plan.Products[0].Height)
	assert.Equal(t, "hero", plan.Products[0].Justification)
	assert.InDelta(t, 0.9, plan.Confidence, 1e-9)
	assert.False(t, plan.Fallback)
}

func TestParsePlanMalformed(t *testing.T) {
	var malformed *apperr.MalformedResponseError

	_, err := ParsePlan("sorry, I cannot", 1000, []Size{{10, 10}}, nil)
	require.ErrorAs(t, err, &malformed)

	_, err = ParsePlan(`{"layout_confidence": 1}`, 1000, []Size{{10, 10}}, nil)
	require.ErrorAs(t, err, &malformed)

	_, err = ParsePlan(`{"asset_placements": {"logos": [{"asset_index": 4}]}}`, 1000, []Size{{10, 10}}, nil)
	require.ErrorAs(t, err, &malformed)
}

func TestPositionFallsBackOnFailure(t *testing.T) {
	poster := posterOf(t, 1000, 1600)
	logos := []image.Image{solid(400, 200, color.NRGBA{A: 255})}

	failing := NewPositioner(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("upstream down")
	}))
	plan := failing.Position(context.Background(), poster, logos, nil, "sale")
	require.True(t, plan.Fallback)
	assert.Equal(t, 120, plan.Logos[0].Width)

	plan = NewPositioner(nil).Position(context.Background(), poster, logos, nil, "sale")
	assert.True(t, plan.Fallback)

	garbage := NewPositioner(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "not json", nil
	}))
	assert.True(t, garbage.Position(context.Background(), poster, logos, nil, "sale").Fallback)
}

func TestPositionSendsPosterImage(t *testing.T) {
	poster := posterOf(t, 100, 100)
	var got llm.Request
	p := NewPositioner(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return `{"asset_placements": {"logos": [{"asset_index": 0, "position": {"x": 5, "y": 5}, "size": {"width": 20, "height": 10}}]}, "layout_confidence": 0.8}`, nil
	}))
	plan := p.Position(context.Background(), poster, []image.Image{solid(40, 20, color.NRGBA{A: 255})}, nil, "coffee launch")

	assert.False(t, plan.Fallback)
	assert.True(t, got.JSON)
	require.Len(t, got.Parts, 2)
	assert.Contains(t, got.Parts[0].Text, "coffee launch")
	assert.True(t, got.Parts[1].IsImage())
}

type cleanStub struct {
	reply []byte
	err   error
}

func (c cleanStub) GenerateContent(ctx context.Context, m string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: c.reply}}}},
	}}}, nil
}

func TestCleanerFallsBackToOriginal(t *testing.T) {
	original, err := utils.EncodePNG(solid(8, 8, color.NRGBA{R: 9, A: 255}))
	require.NoError(t, err)
	cleaned, err := utils.EncodePNG(solid(8, 8, color.NRGBA{}))
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, cleaned, NewCleaner(cleanStub{reply: cleaned}, "img").Clean(ctx, original))
	assert.Equal(t, original, NewCleaner(cleanStub{err: errors.New("quota")}, "img").Clean(ctx, original))
	assert.Equal(t, original, NewCleaner(cleanStub{reply: []byte("junk")}, "img").Clean(ctx, original))

	all := NewCleaner(cleanStub{reply: cleaned}, "img").CleanAll(ctx, [][]byte{original, original})
	assert.Equal(t, [][]byte{cleaned, cleaned}, all)
}

func TestLayerApply(t *testing.T) {
	poster := posterOf(t, 100, 160)
	logo, err := utils.EncodePNG(solid(40, 20, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)

	layer := NewLayer(NewPositioner(nil), nil, DefaultCompositeOptions())

	same, plan, err := layer.Apply(context.Background(), poster, nil, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, poster.ID, same.ID)
	assert.Empty(t, plan.Logos)

	out, plan, err := layer.Apply(context.Background(), poster, [][]byte{logo}, nil, "x")
	require.NoError(t, err)
	assert.True(t, plan.Fallback)
	assert.Equal(t, model.SourceOverlay, out.Source)

	_, _, err = layer.Apply(context.Background(), poster, [][]byte{[]byte("nope")}, nil, "x")
	assert.Error(t, err)
}
