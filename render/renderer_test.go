package render_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/parley/render"
)

type photo struct{ URL string }

func TestDefault_MergesAdjacentText(t *testing.T) {
	segs, err := render.Default{}.Render(context.Background(), render.Fragment(
		render.Text("Hello "),
		render.Fragment(render.Text("world")),
		render.Break(),
		render.Text("second"),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := []render.Kind{render.KindText, render.KindBreak, render.KindText}
	if len(segs) != len(kinds) {
		t.Fatalf("expected %d segments, got %d: %+v", len(kinds), len(segs), segs)
	}
	for i, k := range kinds {
		if segs[i].Kind != k {
			t.Errorf("segs[%d].Kind = %s, want %s", i, segs[i].Kind, k)
		}
	}
	if segs[0].Text() != "Hello world" {
		t.Errorf("merged text = %q", segs[0].Text())
	}
	if segs[0].Path != "$:0" {
		t.Errorf("text path = %q, want $:0", segs[0].Path)
	}
}

func TestDefault_Units(t *testing.T) {
	segs, err := render.Default{}.Render(context.Background(), render.Fragment(
		render.Text("look"),
		render.Unit(photo{URL: "a.png"}),
		render.Text("nice"),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	p, ok := segs[1].Value.(photo)
	if segs[1].Kind != render.KindUnit || !ok || p.URL != "a.png" {
		t.Errorf("unexpected unit segment %+v", segs[1])
	}
}

func TestDefault_EmptyContent(t *testing.T) {
	tests := []struct {
		name string
		node render.Node
	}{
		{"nil", nil},
		{"empty text", render.Text("")},
		{"only breaks", render.Fragment(render.Break(), render.Break())},
		{"empty component", render.Component("nothing", func(context.Context) (render.Node, error) {
			return nil, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := render.Default{}.Render(context.Background(), tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if segs != nil {
				t.Fatalf("expected nil segments, got %+v", segs)
			}
		})
	}
}

func TestDefault_CollapsesBreaks(t *testing.T) {
	segs, _ := render.Default{}.Render(context.Background(), render.Fragment(
		render.Break(),
		render.Text("a"),
		render.Break(),
		render.Break(),
		render.Text("b"),
		render.Break(),
	))
	if len(segs) != 3 {
		t.Fatalf("expected text,break,text; got %+v", segs)
	}
}

func TestDefault_Component(t *testing.T) {
	greeting := render.Component("Greeting", func(context.Context) (render.Node, error) {
		return render.Text("hi"), nil
	})
	segs, err := render.Default{}.Render(context.Background(), greeting)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].Text() != "hi" || segs[0].Path != "$#Greeting" {
		t.Fatalf("unexpected segments %+v", segs)
	}

	boom := errors.New("boom")
	failing := render.Component("Broken", func(context.Context) (render.Node, error) {
		return nil, boom
	})
	if _, err := (render.Default{}).Render(context.Background(), failing); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped component error, got %v", err)
	}
}

func TestDefault_RecursionLimit(t *testing.T) {
	var loop render.Node
	loop = render.Component("Loop", func(context.Context) (render.Node, error) {
		return loop, nil
	})
	if _, err := (render.Default{}).Render(context.Background(), loop); err == nil {
		t.Fatal("expected max depth error")
	}
}
