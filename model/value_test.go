package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOfFromJSON(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Heat",
		"year": 1995,
		"available": true,
		"genres": ["crime", "thriller"],
		"meta": {"studio": "WB"},
		"sequel": null
	}`), &raw))
	doc := Document(raw)

	assert.Equal(t, KindString, doc.Field("title").Kind)
	assert.Equal(t, KindNumber, doc.Field("year").Kind)
	assert.Equal(t, 1995.0, doc.Field("year").Number)
	assert.Equal(t, KindBool, doc.Field("available").Kind)
	assert.Equal(t, KindArray, doc.Field("genres").Kind)
	assert.Len(t, doc.Field("genres").Array, 2)
	assert.Equal(t, KindObject, doc.Field("meta").Kind)
	assert.True(t, doc.Field("sequel").IsNull())
	assert.True(t, doc.Field("missing").IsNull())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Value
		want   int
		wantOK bool
	}{
		{"numbers", ValueOf(2001), ValueOf(1999.0), 1, true},
		{"equal numbers", ValueOf(int64(5)), ValueOf(5.0), 0, true},
		{"strings", ValueOf("apple"), ValueOf("banana"), -1, true},
		{"numeric string vs number", ValueOf("2008"), ValueOf(2001), 1, true},
		{"text vs number", ValueOf("soon"), ValueOf(2001), 0, false},
		{"bool", ValueOf(true), ValueOf(false), 0, false},
		{"array", ValueOf([]interface{}{1.0}), ValueOf(1), 0, false},
		{"null", ValueOf(nil), ValueOf(1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(ValueOf(95.5), ValueOf(95.5)))
	assert.True(t, Equal(ValueOf(2001), ValueOf("2001")))
	assert.False(t, Equal(ValueOf("a"), ValueOf("A")))
	assert.True(t, Equal(ValueOf([]interface{}{"a", 1.0}), ValueOf([]interface{}{"a", 1})))
	assert.False(t, Equal(ValueOf([]interface{}{"a"}), ValueOf([]interface{}{"a", "b"})))
	assert.True(t, Equal(ValueOf(map[string]interface{}{"x": 1.0}), ValueOf(map[string]interface{}{"x": 1})))
	assert.False(t, Equal(ValueOf(true), ValueOf("true")))
	assert.True(t, Equal(ValueOf(nil), ValueOf(nil)))
}

func TestKeyIsCanonical(t *testing.T) {
	assert.Equal(t, ValueOf(1).Key(), ValueOf(1.0).Key())
	assert.Equal(t,
		ValueOf(map[string]interface{}{"b": 1.0, "a": "x"}).Key(),
		ValueOf(map[string]interface{}{"a": "x", "b": 1}).Key())
	assert.NotEqual(t, ValueOf("1").Key(), ValueOf(true).Key())
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"title only", Document{"title": "Heat"}, false},
		{"title and uuid", Document{"title": "Heat", "uuid": "m-1"}, false},
		{"null uuid is treated as absent", Document{"title": "Heat", "uuid": nil}, false},
		{"missing title", Document{"uuid": "m-1"}, true},
		{"non-string title", Document{"title": 42}, true},
		{"blank uuid", Document{"title": "Heat", "uuid": "  "}, true},
		{"numeric uuid", Document{"title": "Heat", "uuid": 7}, true},
		{"nil document", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFieldText(t *testing.T) {
	doc := Document{
		"title":  "Heat",
		"cast":   []interface{}{"Al Pacino", "Robert De Niro", nil},
		"year":   1995.0,
		"meta":   map[string]interface{}{"k": "v"},
		"labels": []string{"a", "b"},
	}
	assert.Equal(t, []string{"Heat"}, doc.FieldText("title"))
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro"}, doc.FieldText("cast"))
	assert.Equal(t, []string{"1995"}, doc.FieldText("year"))
	assert.Nil(t, doc.FieldText("meta"))
	assert.Equal(t, []string{"a", "b"}, doc.FieldText("labels"))
	assert.Nil(t, doc.FieldText("missing"))
}
