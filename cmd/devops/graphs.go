// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"math-tutor/internal/pipeline/common"
)

// DevInput 调试图输入
type DevInput struct {
	Question string `json:"question"`
}

// SearchOutput 检索图输出
type SearchOutput struct {
	Guardrail common.GuardrailOutcome   `json:"guardrail"`
	Docs      []common.RetrievedDocument `json:"docs"`
}

type processor interface {
	Process(ctx context.Context, question string) (*common.QueryResponse, error)
}

type inputChecker interface {
	CheckInput(ctx context.Context, question string) common.GuardrailOutcome
}

type searcher interface {
	Search(ctx context.Context, query string, topK int) ([]common.RetrievedDocument, error)
}

// compileTutorGraph 完整答疑流程：校验输入后交给 Agent
func compileTutorGraph(ctx context.Context, agent processor) (compose.Runnable[*DevInput, *common.QueryResponse], error) {
	g := compose.NewGraph[*DevInput, *common.QueryResponse]()

	_ = g.AddLambdaNode("validate", compose.InvokableLambda(func(ctx context.Context, in *DevInput) (string, error) {
		if in == nil || strings.TrimSpace(in.Question) == "" {
			return "", fmt.Errorf("问题不能为空")
		}
		return strings.TrimSpace(in.Question), nil
	}))
	_ = g.AddLambdaNode("process", compose.InvokableLambda(agent.Process))

	_ = g.AddEdge(compose.START, "validate")
	_ = g.AddEdge("validate", "process")
	_ = g.AddEdge("process", compose.END)

	r, err := g.Compile(ctx, compose.WithGraphName("tutor"))
	if err != nil {
		return nil, fmt.Errorf("compile tutor graph: %w", err)
	}
	return r, nil
}

type searchState struct {
	question string
	out      *SearchOutput
}

// compileSearchGraph 只跑输入护栏与知识库检索，便于单独调试召回
func compileSearchGraph(ctx context.Context, guard inputChecker, s searcher, topK int) (compose.Runnable[*DevInput, *SearchOutput], error) {
	g := compose.NewGraph[*DevInput, *SearchOutput]()

	_ = g.AddLambdaNode("guardrail", compose.InvokableLambda(func(ctx context.Context, in *DevInput) (*searchState, error) {
		if in == nil {
			return nil, fmt.Errorf("输入为空")
		}
		return &searchState{
			question: in.Question,
			out:      &SearchOutput{Guardrail: guard.CheckInput(ctx, in.Question)},
		}, nil
	}))
	_ = g.AddLambdaNode("search", compose.InvokableLambda(func(ctx context.Context, st *searchState) (*SearchOutput, error) {
		if !st.out.Guardrail.Passed {
			return st.out, nil
		}
		docs, err := s.Search(ctx, st.question, topK)
		if err != nil {
			return nil, err
		}
		st.out.Docs = docs
		return st.out, nil
	}))

	_ = g.AddEdge(compose.START, "guardrail")
	_ = g.AddEdge("guardrail", "search")
	_ = g.AddEdge("search", compose.END)

	r, err := g.Compile(ctx, compose.WithGraphName("kb_search"))
	if err != nil {
		return nil, fmt.Errorf("compile search graph: %w", err)
	}
	return r, nil
}
