package testutil

import (
	"errors"
	"testing"
)

func TestMustJSON_Success(t *testing.T) {
	data := MustJSON(map[string]int{"a": 1})
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected JSON: %s", data)
	}
}

func TestMustJSON_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for unmarshalable value")
		}
	}()
	MustJSON(make(chan int))
}

func TestMustJSONRaw_Success(t *testing.T) {
	raw := MustJSONRaw([]int{1, 2, 3})
	if string(raw) != "[1,2,3]" {
		t.Fatalf("unexpected raw JSON: %s", raw)
	}
}

func TestJSONEqual_Equal(t *testing.T) {
	if !JSONEqual([]byte(`{"a":1,"b":2}`), []byte(`{"b":2,"a":1}`)) {
		t.Fatal("expected JSON to be equal regardless of key order")
	}
}

func TestJSONEqual_NotEqual(t *testing.T) {
	if JSONEqual([]byte(`{"a":1}`), []byte(`{"a":2}`)) {
		t.Fatal("expected JSON to differ")
	}
}

func TestJSONEqual_InvalidFirst(t *testing.T) {
	if JSONEqual([]byte(`not json`), []byte(`{}`)) {
		t.Fatal("expected invalid JSON to compare unequal")
	}
}

func TestAssertEqual_Pass(t *testing.T) {
	AssertEqual(t, 1, 1)
}

func TestAssertNotEqual_Pass(t *testing.T) {
	AssertNotEqual(t, 1, 2)
}

func TestAssertNil_Pass(t *testing.T) {
	AssertNil(t, nil)
}

func TestAssertNil_PassNilPointer(t *testing.T) {
	var p *int
	AssertNil(t, p)
}

func TestAssertNotNil_Pass(t *testing.T) {
	AssertNotNil(t, 1)
}

func TestAssertNoError_Pass(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertError_Pass(t *testing.T) {
	AssertError(t, errors.New("boom"))
}

func TestAssertErrorContains_Pass(t *testing.T) {
	AssertErrorContains(t, errors.New("connection reset by peer"), "reset")
}

func TestAssertTrue_Pass(t *testing.T) {
	AssertTrue(t, true)
}

func TestAssertFalse_Pass(t *testing.T) {
	AssertFalse(t, false)
}

func TestAssertLen_Pass(t *testing.T) {
	AssertLen(t, []int{1, 2, 3}, 3)
}

func TestAssertContains_Pass(t *testing.T) {
	AssertContains(t, []string{"a", "b", "c"}, "b")
}

func TestAssertStringContains_Pass(t *testing.T) {
	AssertStringContains(t, "device not connected", "not connected")
}

func TestAssertJSONEqual_Pass(t *testing.T) {
	AssertJSONEqual(t, []byte(`{"a":1}`), []byte(`{"a":1}`))
}
