package vdom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElementLiftsKey(t *testing.T) {
	n := NewElement("li", &Data{Key: "k1"}, nil)
	assert.Equal(t, "li", n.Tag)
	assert.Equal(t, "k1", n.Key)
}

func TestEmptyIsComment(t *testing.T) {
	n := Empty()
	assert.True(t, n.IsComment)
	assert.Empty(t, n.Text)
}

func TestCloneSharesDataCopiesChildren(t *testing.T) {
	child := NewText("x")
	n := NewElement("div", &Data{}, []*VNode{child})
	clone := n.Clone()

	assert.True(t, clone.IsCloned)
	assert.False(t, n.IsCloned)
	assert.Same(t, n.Data, clone.Data)
	require.Len(t, clone.Children, 1)
	assert.Same(t, child, clone.Children[0])

	clone.Children = append(clone.Children, NewText("y"))
	assert.Len(t, n.Children, 1)
}

func TestCloneAllNilPassesThrough(t *testing.T) {
	assert.Nil(t, CloneAll(nil))
}

func TestAddHandlerRoutesNative(t *testing.T) {
	d := &Data{}
	d.AddHandler("click", &EventHandler{}, false)
	d.AddHandler("click", &EventHandler{}, false)
	d.AddHandler("focus", &EventHandler{}, true)

	assert.Len(t, d.On["click"], 2)
	assert.Len(t, d.NativeOn["focus"], 1)
	assert.Empty(t, d.On["focus"])
}
