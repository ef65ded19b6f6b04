package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func createFiles(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte("date,ndvi,cloud_coverage\n"), 0644); err != nil {
		t.Fatal(err)
	}
	safe := filepath.Join(dir, name+".SAFE", "GRANULE")
	if err := os.MkdirAll(safe, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(safe, "B04_10m.jp2"), []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	localdir, distdir, localdir2 := t.TempDir(), t.TempDir(), t.TempDir()
	name := "S2A_MSIL2A_20240105T043151_N0510_R133_T45QYF_20240105T081224"
	createFiles(t, localdir, name)

	storage, err := NewStorageStrategy(ctx, distdir)
	if err != nil {
		t.Fatal(err)
	}

	// Upload a file
	uri, err := storage.Upload(ctx, filepath.Join(localdir, name+".csv"), "hooghly_"+name+".csv")
	if err != nil {
		t.Fatal(err)
	}
	if uri != storage.Path("hooghly_"+name+".csv") {
		t.Errorf("unexpected uri %s", uri)
	}

	// Upload a directory (as a zip)
	if _, err := storage.Upload(ctx, filepath.Join(localdir, name+".SAFE"), name+".SAFE"); err != nil {
		t.Fatal(err)
	}

	// Download & unarchive
	localZip := filepath.Join(localdir2, name+".zip")
	if err := storage.Download(ctx, name+".zip", localZip); err != nil {
		t.Fatal(err)
	}
	files, err := Unarchive(localZip, localdir2)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != name+".SAFE" {
		t.Errorf("unexpected files %v", files)
	}
	if _, err := os.Stat(filepath.Join(localdir2, name+".SAFE", "GRANULE", "B04_10m.jp2")); err != nil {
		t.Error(err)
	}

	// Delete
	if err := storage.Delete(ctx, "hooghly_"+name+".csv"); err != nil {
		t.Error(err)
	}
	if err := storage.Download(ctx, "hooghly_"+name+".csv", filepath.Join(localdir2, "x.csv")); err == nil {
		t.Error("expected an error on a deleted file")
	}
}

func TestExt(t *testing.T) {
	if WithExt("/tmp/S2A.SAFE", ExtensionZIP) != "/tmp/S2A.zip" {
		t.Error(WithExt("/tmp/S2A.SAFE", ExtensionZIP))
	}
	if GetExt("out/hooghly_ndvi_sentinel.csv") != ExtensionCSV {
		t.Error(GetExt("out/hooghly_ndvi_sentinel.csv"))
	}
	if GetExt("README") != NoExtension {
		t.Error(GetExt("README"))
	}
}
