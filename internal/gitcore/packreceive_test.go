package gitcore

import (
	"testing"
)

func TestInstallPack_WritesObjectsAndReturnsOrder(t *testing.T) {
	repo, err := Init(t.TempDir(), InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	blobA := PackEntry{ID: repo.HashContent(BlobObject, []byte("blob a")), Type: byte(BlobObject), Payload: []byte("blob a")}
	blobB := PackEntry{ID: repo.HashContent(BlobObject, []byte("blob b")), Type: byte(BlobObject), Payload: []byte("blob b")}

	packData, err := EncodePack([]PackEntry{blobA, blobB})
	if err != nil {
		t.Fatalf("EncodePack: %v", err)
	}

	installed, err := repo.InstallPack(packData)
	if err != nil {
		t.Fatalf("InstallPack: %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("installed = %d objects, want 2", len(installed))
	}

	for _, id := range installed {
		if !repo.HasObject(id) {
			t.Errorf("expected object %s to be present after InstallPack", id)
		}
	}
}

func TestInstallPack_RejectsNonPackData(t *testing.T) {
	repo, err := Init(t.TempDir(), InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := repo.InstallPack([]byte("not a pack file at all, too short")); err == nil {
		t.Error("expected an error for data without a PACK header")
	}
}

func TestInstallPack_IdempotentOnAlreadyPresentObjects(t *testing.T) {
	repo, err := Init(t.TempDir(), InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	existingHash, err := repo.WriteRaw(BlobObject, []byte("already here"))
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}

	packData, err := EncodePack([]PackEntry{{ID: repo.HashContent(BlobObject, []byte("already here")), Type: byte(BlobObject), Payload: []byte("already here")}})
	if err != nil {
		t.Fatalf("EncodePack: %v", err)
	}

	installed, err := repo.InstallPack(packData)
	if err != nil {
		t.Fatalf("InstallPack: %v", err)
	}
	if len(installed) != 1 || installed[0] != existingHash {
		t.Errorf("installed = %v, want [%s]", installed, existingHash)
	}
}
