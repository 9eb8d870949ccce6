package httpmiddleware

import "testing"

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d denied under capacity", i)
		}
	}
	if l.allow("10.0.0.1") {
		t.Error("request over capacity allowed")
	}
	// A different client has its own bucket.
	if !l.allow("10.0.0.2") {
		t.Error("fresh client denied")
	}
}
