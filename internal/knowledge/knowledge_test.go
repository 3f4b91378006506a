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

package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/einoext"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/config"
)

type keywordEmbedder struct{}

func (keywordEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "integral"):
			out[i] = []float64{1, 0, 0}
		case strings.Contains(t, "acid"):
			out[i] = []float64{0, 1, 0}
		default:
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

type stubRetriever struct {
	docs []*schema.Document
	err  error
	topK int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	o := einoretriever.GetCommonOptions(nil, opts...)
	if o.TopK != nil {
		s.topK = *o.TopK
	}
	return s.docs, s.err
}

func TestLoaderAndSearcher_EndToEnd(t *testing.T) {
	ctx := context.Background()
	emb := keywordEmbedder{}
	backend, err := einoext.NewBackend(ctx, config.VectorConfig{Type: "memory"}, einoext.BackendOptions{TopK: 3}, emb)
	require.NoError(t, err)

	n, err := NewLoader(backend.Indexer, 2, nil).LoadFile(ctx, "testdata/dataset.json")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := NewSearcher(backend.Retriever, emb, nil).Search(ctx, "what is the integral of x", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, common.RetrievedDocument{
		Question:    "Evaluate the integral of x dx from 0 to 1",
		Gold:        "A",
		Subject:     "math",
		Type:        "MCQ",
		Description: "JEE Adv 2016 Paper 1",
		Score:       1,
	}, docs[0])
	for i := 1; i < len(docs); i++ {
		assert.LessOrEqual(t, docs[i].Score, docs[i-1].Score)
	}
}

func TestSearcher_SortsAndClamps(t *testing.T) {
	low := (&schema.Document{ID: "a", Content: "low"}).WithScore(0.2)
	high := (&schema.Document{ID: "b", Content: "high", MetaData: map[string]any{"gold": "C"}}).WithScore(1.3)
	neg := (&schema.Document{ID: "c", Content: "neg"}).WithScore(-0.4)
	r := &stubRetriever{docs: []*schema.Document{low, high, neg}}

	docs, err := NewSearcher(r, nil, nil).Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.topK)
	require.Len(t, docs, 2)
	assert.Equal(t, "high", docs[0].Question)
	assert.Equal(t, 1.0, docs[0].Score)
	assert.Equal(t, "C", docs[0].Gold)
	assert.Equal(t, 0.2, docs[1].Score)
}

func TestSearcher_ErrorIsPipelineError(t *testing.T) {
	r := &stubRetriever{err: errors.New("connection refused")}
	_, err := NewSearcher(r, nil, nil).Search(context.Background(), "q", 3)
	require.Error(t, err)
	pe, ok := common.GetPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, "retrieval", pe.Stage)
	assert.ErrorIs(t, err, common.ErrRetrievalFailed)
}

func TestReadDataset_Errors(t *testing.T) {
	_, err := ReadDataset("testdata/missing.json")
	assert.ErrorIs(t, err, common.ErrLoadingFailed)

	doc := ToDocument(common.DatasetItem{Question: "q", Gold: "7", Subject: "math", Type: "Integer", Index: 42})
	assert.Equal(t, "kb-42", doc.ID)
	assert.Equal(t, "q", doc.Content)
	assert.Equal(t, "42", doc.MetaData["index"])
}
