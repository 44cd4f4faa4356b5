// Package statetest provides a conformance suite run against every
// state.Store backend.
package statetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/parley/state"
)

// Run exercises s with the full conformance suite. Each subtest uses its
// own namespace so a shared backend needs no cleanup between them.
func Run(t *testing.T, s state.Store) {
	t.Helper()
	ctx := context.Background()
	prefix := t.Name()

	ns := func(name string) string { return fmt.Sprintf("%s.%s", prefix, name) }

	t.Run("GetMissing", func(t *testing.T) {
		v, ok, err := s.Get(ctx, ns("missing"), "nope")
		if err != nil || ok || v != nil {
			t.Fatalf("Get = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		n := ns("setget")
		existed, err := s.Set(ctx, n, "a", []byte("one"))
		if err != nil || existed {
			t.Fatalf("first Set = %v, %v", existed, err)
		}
		existed, err = s.Set(ctx, n, "a", []byte("two"))
		if err != nil || !existed {
			t.Fatalf("second Set = %v, %v", existed, err)
		}
		v, ok, err := s.Get(ctx, n, "a")
		if err != nil || !ok || string(v) != "two" {
			t.Fatalf("Get = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		_, _ = s.Set(ctx, ns("left"), "k", []byte("L"))
		_, _ = s.Set(ctx, ns("right"), "k", []byte("R"))
		v, _, _ := s.Get(ctx, ns("left"), "k")
		if string(v) != "L" {
			t.Fatalf("left = %q", v)
		}
		if err := s.Clear(ctx, ns("left")); err != nil {
			t.Fatal(err)
		}
		if v, ok, _ := s.Get(ctx, ns("right"), "k"); !ok || string(v) != "R" {
			t.Fatalf("Clear leaked into another namespace: %q %v", v, ok)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		n := ns("delete")
		_, _ = s.Set(ctx, n, "k", []byte("v"))
		ok, err := s.Delete(ctx, n, "k")
		if err != nil || !ok {
			t.Fatalf("Delete = %v, %v", ok, err)
		}
		ok, err = s.Delete(ctx, n, "k")
		if err != nil || ok {
			t.Fatalf("second Delete = %v, %v", ok, err)
		}
	})

	t.Run("GetAllAndClear", func(t *testing.T) {
		n := ns("all")
		want := map[string]string{"a": "1", "b": "2", "c": "3"}
		for k, v := range want {
			_, _ = s.Set(ctx, n, k, []byte(v))
		}
		all, err := s.GetAll(ctx, n)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != len(want) {
			t.Fatalf("GetAll = %d entries, want %d", len(all), len(want))
		}
		for k, v := range want {
			if string(all[k]) != v {
				t.Errorf("GetAll[%s] = %q, want %q", k, all[k], v)
			}
		}
		if err := s.Clear(ctx, n); err != nil {
			t.Fatal(err)
		}
		all, err = s.GetAll(ctx, n)
		if err != nil || len(all) != 0 {
			t.Fatalf("after Clear = %v, %v", all, err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		n := ns("update")
		v, err := s.Update(ctx, n, "counter", func(old []byte, ok bool) ([]byte, bool, error) {
			if ok {
				t.Errorf("missing key reported as present: %q", old)
			}
			return []byte("1"), true, nil
		})
		if err != nil || string(v) != "1" {
			t.Fatalf("Update insert = %q, %v", v, err)
		}

		v, err = s.Update(ctx, n, "counter", func(old []byte, ok bool) ([]byte, bool, error) {
			return append(old, '1'), true, nil
		})
		if err != nil || string(v) != "11" {
			t.Fatalf("Update modify = %q, %v", v, err)
		}

		v, err = s.Update(ctx, n, "counter", func([]byte, bool) ([]byte, bool, error) {
			return nil, false, nil
		})
		if err != nil || v != nil {
			t.Fatalf("Update delete = %q, %v", v, err)
		}
		if _, ok, _ := s.Get(ctx, n, "counter"); ok {
			t.Fatal("key survived a deleting update")
		}
	})

	t.Run("UpdateErrorAborts", func(t *testing.T) {
		n := ns("update-err")
		_, _ = s.Set(ctx, n, "k", []byte("keep"))
		boom := errors.New("boom")
		_, err := s.Update(ctx, n, "k", func([]byte, bool) ([]byte, bool, error) {
			return []byte("changed"), true, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update err = %v", err)
		}
		if v, _, _ := s.Get(ctx, n, "k"); string(v) != "keep" {
			t.Fatalf("aborted update wrote %q", v)
		}
	})

	t.Run("UpdateIsAtomic", func(t *testing.T) {
		n := ns("atomic")
		const workers, rounds = 4, 10
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range rounds {
					_, err := s.Update(ctx, n, "n", func(old []byte, _ bool) ([]byte, bool, error) {
						return append(old, 'x'), true, nil
					})
					if err != nil {
						t.Errorf("Update: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
		v, _, _ := s.Get(ctx, n, "n")
		if len(v) != workers*rounds {
			t.Fatalf("lost updates: len = %d, want %d", len(v), workers*rounds)
		}
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		type asset struct {
			ID   string `json:"id"`
			Size int    `json:"size"`
		}
		n := ns("json")
		if _, err := state.SetJSON(ctx, s, n, "logo", asset{ID: "m1", Size: 42}); err != nil {
			t.Fatal(err)
		}
		got, ok, err := state.GetJSON[asset](ctx, s, n, "logo")
		if err != nil || !ok || got.ID != "m1" || got.Size != 42 {
			t.Fatalf("GetJSON = %+v, %v, %v", got, ok, err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}
