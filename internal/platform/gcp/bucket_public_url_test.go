package gcp

import "testing"

func TestResolveObjectStoragePublicBaseURL(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
	base, source, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS})
	if err != nil || base != "" || source != "gcs_default" {
		t.Fatalf("gcs default: base=%q source=%q err=%v", base, source, err)
	}

	base, source, err = resolveObjectStoragePublicBaseURL(ObjectStorageConfig{
		Mode:         ObjectStorageModeGCSEmulator,
		EmulatorHost: "http://fake-gcs:4443/",
	})
	if err != nil || base != "http://fake-gcs:4443" || source != "storage_emulator_host" {
		t.Fatalf("emulator fallback: base=%q source=%q err=%v", base, source, err)
	}

	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "localhost:4443")
	if _, _, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS}); err == nil {
		t.Fatalf("relative public base url: expected error")
	}
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name string
		bs   *bucketService
		key  string
		want string
	}{
		{
			name: "gcs default",
			bs:   &bucketService{bucket: "media"},
			key:  "articles/a/media/m/cat.png",
			want: "https://storage.googleapis.com/media/articles/a/media/m/cat.png",
		},
		{
			name: "cdn domain",
			bs:   &bucketService{bucket: "media", cdnDomain: "cdn.example.com"},
			key:  "/articles/a/media/m/cat.png",
			want: "https://cdn.example.com/articles/a/media/m/cat.png",
		},
		{
			name: "public base url",
			bs:   &bucketService{bucket: "media", publicBaseURL: "http://localhost:4443"},
			key:  "k.png",
			want: "http://localhost:4443/media/k.png",
		},
		{
			name: "emulator media endpoint",
			bs:   &bucketService{bucket: "media", storageMode: ObjectStorageModeGCSEmulator, emulatorHost: "http://fake-gcs:4443"},
			key:  "articles/a/cat.png",
			want: "http://fake-gcs:4443/storage/v1/b/media/o/articles%2Fa%2Fcat.png?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bs.PublicURL(tc.key); got != tc.want {
				t.Fatalf("PublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"a/b.PNG":      "image/png",
		"a/b.jpeg?x=1": "image/jpeg",
		"a/b.webp":     "image/webp",
		"a/b":          "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
