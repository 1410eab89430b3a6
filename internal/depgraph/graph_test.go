package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDependenciesAndDependents(t *testing.T) {
	g := Build([]Edge{{SrcFilePath: "a.ts", DstFilePath: "b.ts"}})

	assert.Equal(t, []string{"b.ts"}, g.GetDependencies("a.ts"))
	assert.Equal(t, []string{"a.ts"}, g.GetDependents("b.ts"))
	assert.Empty(t, g.GetDependencies("unknown.ts"))
	assert.Empty(t, g.GetDependents("unknown.ts"))
}

func TestGetTransitiveDependentsExcludesSelf(t *testing.T) {
	g := Build([]Edge{
		{SrcFilePath: "a.ts", DstFilePath: "b.ts"},
		{SrcFilePath: "b.ts", DstFilePath: "c.ts"},
	})

	assert.Equal(t, []string{"a.ts", "b.ts"}, g.GetTransitiveDependents("c.ts"))
	assert.NotContains(t, g.GetTransitiveDependents("c.ts"), "c.ts")
}

func TestGetAffectedByChangeEmptyInput(t *testing.T) {
	g := Build(nil)
	assert.Equal(t, []string{}, g.GetAffectedByChange(nil))
}

func TestGetAffectedByChangeUnionsAndDedupes(t *testing.T) {
	g := Build([]Edge{
		{SrcFilePath: "a.ts", DstFilePath: "c.ts"},
		{SrcFilePath: "b.ts", DstFilePath: "c.ts"},
	})
	affected := g.GetAffectedByChange([]string{"c.ts"})
	assert.ElementsMatch(t, []string{"a.ts", "b.ts"}, affected)
}

func TestHasCycleDetectsMutualImport(t *testing.T) {
	g := Build([]Edge{
		{SrcFilePath: "cycle-a.ts", DstFilePath: "cycle-b.ts"},
		{SrcFilePath: "cycle-b.ts", DstFilePath: "cycle-a.ts"},
	})
	assert.True(t, g.HasCycle())

	paths := g.GetCyclePaths(5)
	require := assert.New(t)
	require.NotEmpty(paths)
	found := false
	for _, p := range paths {
		set := map[string]bool{}
		for _, f := range p {
			set[f] = true
		}
		if set["cycle-a.ts"] && set["cycle-b.ts"] {
			found = true
		}
	}
	require.True(found)
}

func TestHasCycleFalseForAcyclicGraph(t *testing.T) {
	g := Build([]Edge{{SrcFilePath: "a.ts", DstFilePath: "b.ts"}})
	assert.False(t, g.HasCycle())
	assert.Empty(t, g.GetCyclePaths(5))
}

func TestGetFanMetrics(t *testing.T) {
	g := Build([]Edge{
		{SrcFilePath: "a.ts", DstFilePath: "c.ts"},
		{SrcFilePath: "b.ts", DstFilePath: "c.ts"},
		{SrcFilePath: "c.ts", DstFilePath: "d.ts"},
	})
	metrics := g.GetFanMetrics("c.ts")
	assert.Equal(t, 2, metrics.FanIn)
	assert.Equal(t, 1, metrics.FanOut)
}
