package utils

import (
	"context"
	"sync"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Account Number":    "account number",
		"  ACCOUNT  name  ": "account name",
		"one\ttwo\nthree":   "one two three",
		"":                  "",
		"   ":               "",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	if v, err := ParseDecimal("1,234.50"); err != nil || v.String() != "1234.5" {
		t.Fatalf("thousands separators should be stripped, got %v (%v)", v, err)
	}
	if v, err := ParseDecimal("  -42 "); err != nil || v.String() != "-42" {
		t.Fatalf("whitespace should be trimmed, got %v (%v)", v, err)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatal("empty string must not parse")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatal("garbage must not parse")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("expected first-occurrence order [3 1 2], got %v", got)
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 7
	if DereferencePtr(&v) != 7 {
		t.Fatal("should dereference")
	}
	if DereferencePtr[int](nil) != 0 {
		t.Fatal("nil should yield zero value")
	}
	if DereferencePtr(nil, 9) != 9 {
		t.Fatal("nil with default should yield the default")
	}
}

// AccountLock without redis must still serialize writers on the same account.
func TestAccountLock_LocalFallbackSerializes(t *testing.T) {
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := AccountLock(ctx, 42, "helper_test.go", "TestAccountLock")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("lost updates under the local lock: %d", counter)
	}
}
