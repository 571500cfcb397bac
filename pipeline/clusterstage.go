package pipeline

import (
	"context"

	"github.com/briefloop/researchcore/llm"
)

// ClusterStageInput is the optional step 7's input.
type ClusterStageInput struct {
	Description string
	Items       []llm.ScoredItem
}

// ClusterStage groups relevant items into topic clusters when the active
// LLM provider implements llm.TopicClusterer (DESIGN.md OQ 3's capability
// probe). Pipeline.Run only constructs one when the probe succeeds; there
// is no "disabled" state to represent here, matching "ship without
// clustering unless both halves are provided" rather than a typed no-op
// that always runs and returns nothing.
type ClusterStage struct {
	clusterer llm.TopicClusterer
}

func NewClusterStage(clusterer llm.TopicClusterer) *ClusterStage {
	return &ClusterStage{clusterer: clusterer}
}

func (s *ClusterStage) Run(ctx context.Context, in ClusterStageInput) ([]llm.TopicCluster, error) {
	resp, err := s.clusterer.ClusterByTopic(ctx, llm.ClusterRequest{Description: in.Description, Items: in.Items})
	if err != nil {
		return nil, err
	}
	return resp.Clusters, nil
}

var _ Stage[ClusterStageInput, []llm.TopicCluster] = (*ClusterStage)(nil)
