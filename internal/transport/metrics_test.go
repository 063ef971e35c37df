package transport

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/witvcs/wit/internal/gitcore"
)

func refsToHashes(refs []RemoteRef) []gitcore.Hash {
	hashes := make([]gitcore.Hash, 0, len(refs))
	for _, ref := range refs {
		hashes = append(hashes, ref.Hash)
	}
	return hashes
}

func TestHandleUploadPack_RecordsSentBytes(t *testing.T) {
	repo := newServerRepo(t)
	srv := startTestServer(t, repo)

	before := testutil.ToFloat64(packBytesTotal.WithLabelValues("sent"))

	client := NewClient(srv.URL+"/test-repo", srv.Client())
	refs, err := client.DiscoverRefs(t.Context(), ServiceUploadPack)
	if err != nil {
		t.Fatalf("DiscoverRefs: %v", err)
	}
	if _, err := client.FetchPack(t.Context(), refsToHashes(refs), nil); err != nil {
		t.Fatalf("FetchPack: %v", err)
	}

	after := testutil.ToFloat64(packBytesTotal.WithLabelValues("sent"))
	if after <= before {
		t.Errorf("packBytesTotal{sent} did not increase: before=%v after=%v", before, after)
	}
}

func TestHandleReceivePack_RecordsReceivedBytesAndInstalledObjects(t *testing.T) {
	repo := newServerRepo(t)
	srv := startTestServer(t, repo)

	client := NewClient(srv.URL+"/test-repo", srv.Client())
	refs, err := client.DiscoverRefs(t.Context(), ServiceUploadPack)
	if err != nil {
		t.Fatalf("DiscoverRefs: %v", err)
	}
	packData, err := client.FetchPack(t.Context(), refsToHashes(refs), nil)
	if err != nil {
		t.Fatalf("FetchPack: %v", err)
	}

	beforeReceived := testutil.ToFloat64(packBytesTotal.WithLabelValues("received"))
	beforeInstalled := testutil.ToFloat64(objectsInstalledTotal)

	zero := gitcore.Hash(strings.Repeat("0", repo.HashAlgorithm().HexSize()))
	updates := make([]PushUpdate, 0, len(refs))
	for i, ref := range refs {
		updates = append(updates, PushUpdate{Old: zero, New: ref.Hash, Name: "refs/heads/pushed-" + string(rune('a'+i))})
	}
	statuses, err := client.PushPack(t.Context(), updates, packData)
	if err != nil {
		t.Fatalf("PushPack: %v", err)
	}
	if len(statuses) == 0 {
		t.Error("expected at least one ref status in the push report")
	}

	afterReceived := testutil.ToFloat64(packBytesTotal.WithLabelValues("received"))
	afterInstalled := testutil.ToFloat64(objectsInstalledTotal)
	if afterReceived <= beforeReceived {
		t.Errorf("packBytesTotal{received} did not increase: before=%v after=%v", beforeReceived, afterReceived)
	}
	if afterInstalled <= beforeInstalled {
		t.Errorf("objectsInstalledTotal did not increase: before=%v after=%v", beforeInstalled, afterInstalled)
	}
}
