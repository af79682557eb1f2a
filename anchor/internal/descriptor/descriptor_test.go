package descriptor

import (
	"errors"
	"strings"
	"testing"
)

const fixture = `{
  "id": "sel_1765105497930_4tc60wwva",
  "text": "quick brown",
  "type": "highlight",
  "restore": {
    "anchors": {"startId": "p1", "endId": "p1", "startOffset": 4, "endOffset": 15},
    "paths": {"startPath": "p:nth-of-type(1)", "endPath": "p:nth-of-type(1)",
              "startOffset": 4, "endOffset": 15, "startTextOffset": 4, "endTextOffset": 15},
    "multipleAnchors": {
      "startAnchors": {"tagName": "p", "className": "", "id": "p1", "attributes": {"id": "p1"}},
      "endAnchors": {"tagName": "p", "className": "", "id": "p1", "attributes": {"id": "p1"}},
      "commonParent": "p:nth-of-type(1)",
      "siblingInfo": {"index": 0, "total": 1, "tagPattern": "p"}
    },
    "fingerprint": {
      "tagName": "p", "className": "", "attributes": {"id": "p1"},
      "textLength": 43, "childCount": 0, "depth": 0,
      "parentChain": [{"tagName": "body", "className": "", "id": ""}],
      "siblingPattern": {"position": 0, "total": 1, "beforeTags": [], "afterTags": []}
    },
    "context": {
      "precedingText": "The ", "followingText": " fox jumps over the lazy dog",
      "parentText": "The quick brown fox jumps over the lazy dog",
      "textPosition": {"start": 4, "end": 15, "totalLength": 43}
    }
  }
}`

func TestUnmarshal_Fixture(t *testing.T) {
	d, err := Unmarshal([]byte(fixture))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.ID != "sel_1765105497930_4tc60wwva" {
		t.Errorf("ID: got %q", d.ID)
	}
	if d.Restore.Anchors == nil || d.Restore.Anchors.EndOffset != 15 {
		t.Errorf("Anchors: got %+v", d.Restore.Anchors)
	}
	if d.Restore.Context.TextPosition.TotalLength != 43 {
		t.Errorf("TextPosition: got %+v", d.Restore.Context.TextPosition)
	}
	if len(d.Restore.Fingerprint.ParentChain) != 1 {
		t.Errorf("ParentChain: got %v", d.Restore.Fingerprint.ParentChain)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing text":    `{"id":"a","type":"t","restore":{"anchors":{"startId":"","endId":"","startOffset":0,"endOffset":1}}}`,
		"empty restore":   `{"id":"a","text":"x","type":"t","restore":{}}`,
		"negative offset": `{"id":"a","text":"x","type":"t","restore":{"anchors":{"startId":"","endId":"","startOffset":-1,"endOffset":1}}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Validate([]byte(raw)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMarshal_FieldNames(t *testing.T) {
	d, err := Unmarshal([]byte(fixture))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"anchors"`, `"paths"`, `"multipleAnchors"`, `"fingerprint"`, `"context"`,
		`"startTextOffset"`, `"siblingPattern"`, `"textPosition"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("marshalled descriptor lacks %s", key)
		}
	}
	if err := Validate(raw); err != nil {
		t.Errorf("re-marshalled descriptor invalid: %v", err)
	}
}

func TestErrors_As(t *testing.T) {
	var err error = &UnresolvableSelectionError{ID: "s1", Attempted: []string{"anchors", "context"}}
	var target *UnresolvableSelectionError
	if !errors.As(err, &target) || target.ID != "s1" {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !strings.Contains(err.Error(), "anchors, context") {
		t.Errorf("Error(): got %q", err.Error())
	}
}
