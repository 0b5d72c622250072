package flows_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/flows"
	"github.com/lodge-sh/lodge/pkg/types"
)

func strptr(s string) *string { return &s }

func TestMatchFlow_FirstMatchWins(t *testing.T) {
	list := []types.Flow{
		{Source: "commands/*.md", Target: types.TargetPattern{Literal: "cmd/"}, Strategy: types.MergeReplace},
		{Source: "**", Target: types.TargetPattern{Literal: "misc/"}, Strategy: types.MergeReplace},
	}

	flow, ok := flows.MatchFlow(list, "commands/build.md")
	require.True(t, ok)
	assert.Equal(t, "commands/*.md", flow.Source)

	flow, ok = flows.MatchFlow(list, "other/file.txt")
	require.True(t, ok)
	assert.Equal(t, "**", flow.Source)
}

func TestMatchFlow_ExactMatchForPlainPatterns(t *testing.T) {
	list := []types.Flow{
		{Source: "settings.json", Target: types.TargetPattern{Literal: "settings.json"}},
	}

	_, ok := flows.MatchFlow(list, "settings.json")
	assert.True(t, ok)

	_, ok = flows.MatchFlow(list, "sub/settings.json")
	assert.False(t, ok, "plain patterns must not glob")
}

func TestResolveTarget_DirectoryTargetStripsPatternPrefix(t *testing.T) {
	tests := []struct {
		name      string
		flow      types.Flow
		sourceRel string
		want      string
	}{
		{
			name:      "glob under its own directory",
			flow:      types.Flow{Source: "commands/**", Target: types.TargetPattern{Literal: "commands/"}},
			sourceRel: "commands/deploy.md",
			want:      "commands/deploy.md",
		},
		{
			name:      "glob redirected to another directory",
			flow:      types.Flow{Source: "commands/**", Target: types.TargetPattern{Literal: "cmd/"}},
			sourceRel: "commands/build.md",
			want:      "cmd/build.md",
		},
		{
			name:      "nested file keeps its path below the prefix",
			flow:      types.Flow{Source: "agents/**", Target: types.TargetPattern{Literal: "agents/"}},
			sourceRel: "agents/review/style.md",
			want:      "agents/review/style.md",
		},
		{
			name:      "bare glob has no prefix to strip",
			flow:      types.Flow{Source: "**", Target: types.TargetPattern{Literal: "{package}/"}},
			sourceRel: "commands/build.md",
			want:      "demo/commands/build.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := flows.ResolveTarget(tt.flow, tt.sourceRel, flows.Vars{"package": "demo"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, target)
		})
	}
}

func TestResolveTarget_TemplateVariables(t *testing.T) {
	flow := types.Flow{
		Source: "config.yaml",
		Target: types.TargetPattern{Literal: "packages/{package}/{basename}"},
	}

	target, err := flows.ResolveTarget(flow, "config.yaml", flows.Vars{"package": "demo"})
	require.NoError(t, err)
	assert.Equal(t, "packages/demo/config.yaml", target)
}

func TestResolveTarget_UnknownVariableIsConfigError(t *testing.T) {
	flow := types.Flow{
		Source: "a",
		Target: types.TargetPattern{Literal: "{nope}/a"},
	}

	_, err := flows.ResolveTarget(flow, "a", flows.Vars{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFlowInvalid))
}

func TestResolveTarget_Switch(t *testing.T) {
	flow := types.Flow{
		Source: "hooks/*",
		Target: types.TargetPattern{Switch: &types.SwitchExpr{
			Field: "platform",
			Cases: []types.SwitchCase{
				{Pattern: "claude", Value: "hooks/"},
				{Pattern: "vs*", Value: "extensions/hooks/"},
			},
			Default: strptr("misc/"),
		}},
	}

	tests := []struct {
		name     string
		platform string
		want     string
	}{
		{name: "exact_case", platform: "claude", want: "hooks/hooks/pre.sh"},
		{name: "glob_case", platform: "vscode", want: "extensions/hooks/hooks/pre.sh"},
		{name: "default", platform: "cursor", want: "misc/hooks/pre.sh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := flows.ResolveTarget(flow, "hooks/pre.sh", flows.Vars{"platform": tt.platform})
			require.NoError(t, err)
			assert.Equal(t, tt.want, target)
		})
	}
}

func TestResolveTarget_SwitchFirstMatchWins(t *testing.T) {
	flow := types.Flow{
		Source: "a",
		Target: types.TargetPattern{Switch: &types.SwitchExpr{
			Field: "platform",
			Cases: []types.SwitchCase{
				{Pattern: "c*", Value: "first/"},
				{Pattern: "claude", Value: "second/"},
			},
		}},
	}

	target, err := flows.ResolveTarget(flow, "a", flows.Vars{"platform": "claude"})
	require.NoError(t, err)
	assert.Equal(t, "first/a", target)
}

func TestResolveTarget_SwitchStructuralEquality(t *testing.T) {
	flow := types.Flow{
		Source: "a",
		Target: types.TargetPattern{Switch: &types.SwitchExpr{
			Field: "meta",
			Cases: []types.SwitchCase{
				{Pattern: map[string]any{"kind": "agent"}, Value: "agents/"},
			},
			Default: strptr("other/"),
		}},
	}

	target, err := flows.ResolveTarget(flow, "a", flows.Vars{"meta": map[string]any{"kind": "agent"}})
	require.NoError(t, err)
	assert.Equal(t, "agents/a", target)

	target, err = flows.ResolveTarget(flow, "a", flows.Vars{"meta": map[string]any{"kind": "tool"}})
	require.NoError(t, err)
	assert.Equal(t, "other/a", target)
}

func TestResolveTarget_SwitchNoCaseNoDefaultFailsLoudly(t *testing.T) {
	flow := types.Flow{
		Source: "a",
		Target: types.TargetPattern{Switch: &types.SwitchExpr{
			Field: "platform",
			Cases: []types.SwitchCase{{Pattern: "never", Value: "x"}},
		}},
	}

	_, err := flows.ResolveTarget(flow, "a", flows.Vars{"platform": "claude"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFlowInvalid))
}
