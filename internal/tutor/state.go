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

package tutor

import (
	"fmt"
	"sync"
	"time"

	"math-tutor/internal/pipeline/common"
)

// Stage 状态机中的一个节点
type Stage string

const (
	StageStart             Stage = "START"
	StageInputGuardrail    Stage = "INPUT_GUARDRAIL"
	StageRouter            Stage = "ROUTER"
	StageKBRetrieval       Stage = "KB_RETRIEVAL"
	StageWebSearch         Stage = "WEB_SEARCH"
	StageSolutionGenerator Stage = "SOLUTION_GENERATOR"
	StageOutputGuardrail   Stage = "OUTPUT_GUARDRAIL"
	StageEnd               Stage = "END"
)

// AgentState 单次提问的工作状态，请求结束即丢弃
type AgentState struct {
	QueryID         string
	Question        string
	Route           common.RouteDecision
	RetrievedDocs   []common.RetrievedDocument
	WebResults      []common.WebResult
	Answer          string
	Solution        string
	Confidence      float64
	Sources         []string
	GuardrailPassed bool
	Stage           Stage
}

// NewAgentState 初始状态位于 START
func NewAgentState(queryID, question string) *AgentState {
	return &AgentState{
		QueryID:         queryID,
		Question:        question,
		GuardrailPassed: true,
		Stage:           StageStart,
	}
}

// Next 纯函数：根据当前阶段与状态给出下一阶段
func Next(stage Stage, st *AgentState) Stage {
	switch stage {
	case StageStart:
		return StageInputGuardrail
	case StageInputGuardrail:
		if st.GuardrailPassed {
			return StageRouter
		}
		return StageEnd
	case StageRouter:
		if st.Route == common.RouteKnowledgeBase {
			return StageKBRetrieval
		}
		return StageWebSearch
	case StageKBRetrieval, StageWebSearch:
		return StageSolutionGenerator
	case StageSolutionGenerator:
		return StageOutputGuardrail
	default:
		return StageEnd
	}
}

// Response 由终态构造应答；docs 只在 KB 路由、sources 只在 web 路由出现
func (st *AgentState) Response(now time.Time) *common.QueryResponse {
	resp := &common.QueryResponse{
		QueryID:            st.QueryID,
		Question:           st.Question,
		Answer:             st.Answer,
		StepByStepSolution: st.Solution,
		RouteUsed:          st.Route,
		RetrievedDocs:      []common.RetrievedDocument{},
		ConfidenceScore:    st.Confidence,
		Sources:            []string{},
		Timestamp:          now,
	}
	switch st.Route {
	case common.RouteKnowledgeBase:
		if st.RetrievedDocs != nil {
			resp.RetrievedDocs = st.RetrievedDocs
		}
	case common.RouteWebSearch:
		if st.Sources != nil {
			resp.Sources = st.Sources
		}
	}
	return resp
}

const queryIDLayout = "20060102150405.000000"

// IDGenerator 生成 YYYYMMDDHHMMSSffffff 形式的查询 ID。
// 时间戳不晚于已发出的最大时间戳（同一微秒或时钟回拨）时追加进程内递增的 -N
type IDGenerator struct {
	now  func() time.Time
	mu   sync.Mutex
	seq  uint64
	high time.Time
}

// NewIDGenerator now 为 nil 时使用本地时间
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next 进程内唯一：不带后缀的 ID 严格递增，带后缀的 ID 序号各不相同
func (g *IDGenerator) Next() string {
	t := g.now().Truncate(time.Microsecond)
	ts := t.Local().Format(queryIDLayout)
	id := ts[:14] + ts[15:]

	g.mu.Lock()
	defer g.mu.Unlock()
	if !t.After(g.high) {
		g.seq++
		return fmt.Sprintf("%s-%d", id, g.seq)
	}
	g.high = t
	return id
}
