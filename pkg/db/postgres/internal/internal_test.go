package internal_test

import (
	"encoding/json"
	"testing"

	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgintr "github.com/modelyard/modelyard/pkg/db/postgres/internal"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestDraftPayloadCodec(t *testing.T) {
	roundtrip := func(t *testing.T, payload mdb.DraftPayload) mdb.DraftPayload {
		t.Helper()

		marshalled := try.To(kpgintr.MarshalDraftPayload(payload)).OrFatal(t)

		var record kpgintr.DraftPayload
		if err := json.Unmarshal(marshalled.Bytes, &record); err != nil {
			t.Fatal(err)
		}
		return try.To(record.Model()).OrFatal(t)
	}

	t.Run("a new-resource payload without base survives the roundtrip", func(t *testing.T) {
		payload := mdb.NewResource{
			Data: mdb.ResourceData{"name": "exp-1", "epochs": float64(10)},
		}
		actual := roundtrip(t, payload)
		if !payload.Equal(actual) {
			t.Errorf("payload does not match. (actual, expected) = (%+v, %+v)", actual, payload)
		}
	})

	t.Run("a new-resource payload with base survives the roundtrip", func(t *testing.T) {
		payload := mdb.NewResource{
			Data:           mdb.ResourceData{"name": "job-1"},
			BaseResourceId: pointer.Ref[int64](42),
		}
		actual := roundtrip(t, payload)
		if !payload.Equal(actual) {
			t.Errorf("payload does not match. (actual, expected) = (%+v, %+v)", actual, payload)
		}
	})

	t.Run("a modification payload survives the roundtrip", func(t *testing.T) {
		payload := mdb.Modification{
			Data:       mdb.ResourceData{"name": "exp-1", "note": "tuned"},
			ResourceId: 42,
			SnapshotId: 7,
		}
		actual := roundtrip(t, payload)
		if !payload.Equal(actual) {
			t.Errorf("payload does not match. (actual, expected) = (%+v, %+v)", actual, payload)
		}
	})

	t.Run("the persisted blob carries exactly the four wire keys", func(t *testing.T) {
		marshalled := try.To(kpgintr.MarshalDraftPayload(mdb.Modification{
			Data: mdb.ResourceData{}, ResourceId: 42, SnapshotId: 7,
		})).OrFatal(t)

		keys := map[string]json.RawMessage{}
		if err := json.Unmarshal(marshalled.Bytes, &keys); err != nil {
			t.Fatal(err)
		}
		for _, k := range []string{
			"resource_data", "resource_id", "resource_snapshot_id", "base_resource_id",
		} {
			if _, ok := keys[k]; !ok {
				t.Errorf("key %s is missing from the persisted payload", k)
			}
			delete(keys, k)
		}
		if len(keys) != 0 {
			t.Errorf("unexpected keys in the persisted payload: %v", keys)
		}
	})

	t.Run("a payload with resource_id but no snapshot is broken", func(t *testing.T) {
		record := kpgintr.DraftPayload{
			ResourceData: mdb.ResourceData{},
			ResourceId:   pointer.Ref[int64](42),
		}
		if _, err := record.Model(); err == nil {
			t.Error("a half-set modification payload should be an error")
		}
	})
}
