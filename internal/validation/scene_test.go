package validation

import (
	"testing"

	"github.com/diagen/diagen/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSceneOK(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	raw := []byte(`{
		"elements": [
			{"id": "e1", "type": "rectangle", "x": 0, "y": 0, "width": 100, "height": 60,
			 "backgroundColor": "#ffc9c9", "strokeColor": "#e03131", "groupIds": ["g1"],
			 "boundElements": [{"id": "t1", "type": "text"}]},
			{"id": "t1", "type": "text", "text": "hello", "containerId": "e1"},
			{"id": "a1", "type": "arrow",
			 "startBinding": {"elementId": "e1", "focus": 0.1, "gap": 4},
			 "endBinding": null}
		]
	}`)
	assert.NoError(t, v.ValidateScene(raw))
}

func TestValidateSceneEmpty(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	err = v.ValidateScene(nil)
	require.Error(t, err)

	var derr *schema.DiagenError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, schema.ErrCodeValidation, derr.Code)
}

func TestValidateSceneNotJSON(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	assert.Error(t, v.ValidateScene([]byte("not json")))
}

func TestValidateSceneViolations(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	// Missing elements, bad element type, missing id.
	raw := []byte(`{"elements": [{"type": "hexagon"}, {"id": "e2", "type": "rectangle"}]}`)
	err = v.ValidateScene(raw)
	require.Error(t, err)

	var derr *schema.DiagenError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, schema.ErrCodeValidation, derr.Code)
	assert.NotEmpty(t, derr.Details["violations"])
}

func TestDecodeScene(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	raw := []byte(`{"elements": [{"id": "e1", "type": "diamond"}]}`)
	scene, err := v.DecodeScene(raw)
	require.NoError(t, err)
	require.Len(t, scene.Elements, 1)
	assert.Equal(t, schema.ElementDiamond, scene.Elements[0].Type)
}

func TestDecodeSceneInvalid(t *testing.T) {
	v, err := NewSceneValidator()
	require.NoError(t, err)

	_, err = v.DecodeScene([]byte(`{"elements": [{"type": "rectangle"}]}`))
	assert.Error(t, err)
}
