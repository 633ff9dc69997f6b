package db_test

import (
	"errors"
	"testing"

	mdb "github.com/modelyard/modelyard/pkg/db"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
)

func TestDraftPayload(t *testing.T) {
	t.Run("NewResource has kind resource", func(t *testing.T) {
		var p mdb.DraftPayload = mdb.NewResource{
			Data: mdb.ResourceData{"name": "exp-1"},
		}
		if p.Kind() != mdb.KindResource {
			t.Errorf("kind does not match. (actual, expected) = (%s, %s)", p.Kind(), mdb.KindResource)
		}
		if !p.ResourceData().Equal(mdb.ResourceData{"name": "exp-1"}) {
			t.Errorf("resource data does not match: %v", p.ResourceData())
		}
	})

	t.Run("Modification has kind modification", func(t *testing.T) {
		var p mdb.DraftPayload = mdb.Modification{
			Data: mdb.ResourceData{"name": "exp-1"}, ResourceId: 42, SnapshotId: 7,
		}
		if p.Kind() != mdb.KindModification {
			t.Errorf("kind does not match. (actual, expected) = (%s, %s)", p.Kind(), mdb.KindModification)
		}
	})

	t.Run("payloads of different variants are not equal", func(t *testing.T) {
		a := mdb.NewResource{Data: mdb.ResourceData{"name": "x"}}
		b := mdb.Modification{Data: mdb.ResourceData{"name": "x"}, ResourceId: 1, SnapshotId: 1}
		if a.Equal(b) || b.Equal(a) {
			t.Error("payloads of different kinds should not be equal")
		}
	})

	t.Run("NewResource equality covers the base resource", func(t *testing.T) {
		for name, testcase := range map[string]struct {
			a, b  mdb.NewResource
			equal bool
		}{
			"both without base": {
				a:     mdb.NewResource{Data: mdb.ResourceData{"k": "v"}},
				b:     mdb.NewResource{Data: mdb.ResourceData{"k": "v"}},
				equal: true,
			},
			"same base": {
				a:     mdb.NewResource{Data: mdb.ResourceData{}, BaseResourceId: pointer.Ref[int64](3)},
				b:     mdb.NewResource{Data: mdb.ResourceData{}, BaseResourceId: pointer.Ref[int64](3)},
				equal: true,
			},
			"different base": {
				a:     mdb.NewResource{Data: mdb.ResourceData{}, BaseResourceId: pointer.Ref[int64](3)},
				b:     mdb.NewResource{Data: mdb.ResourceData{}, BaseResourceId: pointer.Ref[int64](4)},
				equal: false,
			},
			"base vs no base": {
				a:     mdb.NewResource{Data: mdb.ResourceData{}, BaseResourceId: pointer.Ref[int64](3)},
				b:     mdb.NewResource{Data: mdb.ResourceData{}},
				equal: false,
			},
			"different data": {
				a:     mdb.NewResource{Data: mdb.ResourceData{"k": "v"}},
				b:     mdb.NewResource{Data: mdb.ResourceData{"k": "w"}},
				equal: false,
			},
		} {
			t.Run(name, func(t *testing.T) {
				if actual := testcase.a.Equal(testcase.b); actual != testcase.equal {
					t.Errorf("Equal = %v, want %v", actual, testcase.equal)
				}
			})
		}
	})
}

func TestDraftFilter_Matches(t *testing.T) {
	draft := &mdb.Draft{
		DraftId:      1,
		ResourceType: mdb.TypeExperiment,
		GroupId:      10,
		CreatorId:    100,
		Payload:      mdb.NewResource{Data: mdb.ResourceData{}},
	}

	for name, testcase := range map[string]struct {
		filter  mdb.DraftFilter
		matches bool
	}{
		"empty filter matches": {
			filter: mdb.DraftFilter{}, matches: true,
		},
		"matching type": {
			filter: mdb.DraftFilter{ResourceType: mdb.TypeExperiment}, matches: true,
		},
		"other type": {
			filter: mdb.DraftFilter{ResourceType: mdb.TypeJob}, matches: false,
		},
		"matching creator": {
			filter: mdb.DraftFilter{CreatorId: pointer.Ref[int64](100)}, matches: true,
		},
		"other creator": {
			filter: mdb.DraftFilter{CreatorId: pointer.Ref[int64](101)}, matches: false,
		},
		"type matches but creator does not": {
			filter: mdb.DraftFilter{
				ResourceType: mdb.TypeExperiment, CreatorId: pointer.Ref[int64](101),
			},
			matches: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.filter.Matches(draft); actual != testcase.matches {
				t.Errorf("Matches = %v, want %v", actual, testcase.matches)
			}
		})
	}
}

func TestAsDraftKind(t *testing.T) {
	for _, kind := range []mdb.DraftKind{
		mdb.KindAny, mdb.KindResource, mdb.KindModification,
	} {
		actual, err := mdb.AsDraftKind(kind.String())
		if err != nil {
			t.Errorf("%s should be a draft kind: %v", kind, err)
		}
		if actual != kind {
			t.Errorf("kind does not match. (actual, expected) = (%s, %s)", actual, kind)
		}
	}

	if _, err := mdb.AsDraftKind("draft"); !errors.Is(err, mdb.ErrUnknownDraftKind) {
		t.Errorf("unexpected error for unknown kind: %v", err)
	}
}
