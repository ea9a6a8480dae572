package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agoracore/internal/contentfilter"
	"agoracore/internal/database"
	"agoracore/internal/eventbus"
	"agoracore/internal/factcheck"
	"agoracore/internal/gateway"
	"agoracore/internal/models"
)

// betweenAgentDelay and skipDelay match the reference orchestrator's pacing
// between agent turns within a polling cycle.
const (
	betweenAgentDelay = 5 * time.Second
	skipDelay         = 2 * time.Second
	commentTimeout    = 120 * time.Second
)

// TopicOrchestrator runs a free-form, polling-driven discussion to
// completion: each cycle offers every under-quota participant, in shuffled
// order, a chance to comment, until the topic closes or all quotas are
// exhausted.
type TopicOrchestrator struct {
	Topics       *database.TopicRepository
	Comments     *database.CommentRepository
	Participants *database.ParticipantRepository
	Factchecks   *database.FactcheckRepository
	Worker       *factcheck.Worker
	Filter       *contentfilter.Filter
	Bus          *eventbus.Bus
	Gateways     GatewayFactory
	MaxFactcheck int
	Log          *logrus.Logger
}

// Run drives a topic from open through closed. Like DebateOrchestrator.Run,
// it is meant to be launched in its own goroutine.
func (o *TopicOrchestrator) Run(ctx context.Context, topicID uuid.UUID) {
	if err := o.runLoop(ctx, topicID); err != nil {
		o.Log.WithError(err).WithField("topic_id", topicID).Error("Topic orchestrator failed")
		if closeErr := o.Topics.Close(ctx, topicID); closeErr != nil {
			o.Log.WithError(closeErr).WithField("topic_id", topicID).Error("Failed to close topic after error")
		}
	}
}

func (o *TopicOrchestrator) runLoop(ctx context.Context, topicID uuid.UUID) error {
	topic, err := o.Topics.GetByID(ctx, topicID)
	if err != nil {
		return err
	}
	o.Log.WithFields(logrus.Fields{"topic_id": topicID, "title": topic.Title}).Info("Starting topic discussion")

	for {
		topic, err = o.Topics.GetByID(ctx, topicID)
		if err != nil {
			return err
		}
		if topic.Status != models.TopicStatusOpen {
			break
		}
		if topic.ClosesAt != nil && !time.Now().Before(*topic.ClosesAt) {
			if err := o.Topics.Close(ctx, topicID); err != nil {
				return err
			}
			break
		}

		participants, err := o.Topics.ListParticipants(ctx, topicID)
		if err != nil {
			return err
		}
		if allQuotasExhausted(participants) {
			if err := o.Topics.Close(ctx, topicID); err != nil {
				return err
			}
			break
		}

		if err := o.pollCycle(ctx, topic, participants); err != nil {
			return err
		}

		select {
		case <-time.After(time.Duration(topic.PollingIntervalSeconds) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.Bus.Publish(topicID, eventbus.EventTopicClosed, map[string]any{"topic_id": topicID})
	return nil
}

func allQuotasExhausted(participants []*models.TopicParticipant) bool {
	for _, p := range participants {
		if p.CommentCount < p.MaxComments {
			return false
		}
	}
	return true
}

func (o *TopicOrchestrator) pollCycle(ctx context.Context, topic *models.Topic, participants []*models.TopicParticipant) error {
	order := append([]*models.TopicParticipant(nil), participants...)
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, tp := range order {
		if tp.CommentCount >= tp.MaxComments {
			continue
		}
		if err := o.pollOne(ctx, topic, tp); err != nil {
			return err
		}
		select {
		case <-time.After(betweenAgentDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *TopicOrchestrator) pollOne(ctx context.Context, topic *models.Topic, tp *models.TopicParticipant) error {
	participant, err := o.Participants.GetByID(ctx, tp.ParticipantID)
	if err != nil {
		return err
	}

	existing, err := o.Comments.ListByTopic(ctx, topic.ID)
	if err != nil {
		return err
	}

	gw := o.Gateways.For(participant)
	commentCtx, cancel := context.WithTimeout(ctx, commentTimeout)
	result, genErr := gw.GenerateComment(commentCtx, gateway.CommentRequest{
		TopicTitle:         topic.Title,
		TopicDescription:   descriptionOrEmpty(topic),
		ExistingComments:   toExistingComments(existing),
		MyPreviousComments: toExistingComments(filterByParticipant(existing, participant.ID)),
		RemainingComments:  tp.MaxComments - tp.CommentCount,
	})
	cancel()

	switch {
	case errors.Is(genErr, context.DeadlineExceeded):
		o.Log.WithField("participant", participant.Name).Warn("Participant timed out on comment")
		return nil
	case genErr != nil:
		o.Log.WithError(genErr).WithField("participant", participant.Name).Error("Participant comment generation failed")
		return nil
	case result == nil:
		o.Log.WithField("participant", participant.Name).Debug("Participant skipped this cycle")
		return sleepFor(ctx, skipDelay)
	}

	if safe, reason := o.Filter.Check(result.Content); !safe {
		o.Log.WithFields(logrus.Fields{"participant": participant.Name, "reason": reason}).Warn("Comment content violation")
		return sleepFor(ctx, skipDelay)
	}

	comment := &models.Comment{
		TopicID:       topic.ID,
		ParticipantID: participant.ID,
		Content:       result.Content,
		References:    result.References,
		Citations:     result.Citations,
		TokenCount:    result.TokenCount,
	}
	if result.Stance != "" {
		comment.Stance = &result.Stance
	}
	if err := o.Comments.Insert(ctx, comment); err != nil {
		return err
	}
	if err := o.Topics.IncrementCommentCount(ctx, topic.ID, participant.ID); err != nil {
		return err
	}

	o.Bus.Publish(topic.ID, eventbus.EventNewComment, map[string]any{
		"comment_id":     comment.ID,
		"participant_id": participant.ID,
	})

	if len(result.Citations) > 0 {
		o.maybeAutoFactcheck(ctx, topic.ID, comment.ID, result.Content)
	}
	return nil
}

func (o *TopicOrchestrator) maybeAutoFactcheck(ctx context.Context, topicID, commentID uuid.UUID, content string) {
	count, err := o.Factchecks.CountByTopic(ctx, topicID)
	if err != nil {
		o.Log.WithError(err).Warn("Failed to count factcheck requests for topic")
		return
	}
	if count >= o.MaxFactcheck {
		return
	}

	req, created, err := o.Factchecks.InsertRequestDedup(ctx, &models.FactcheckRequest{
		TopicID:   &topicID,
		CommentID: &commentID,
		ClaimHash: factcheck.ClaimHash(content),
	})
	if err != nil {
		o.Log.WithError(err).Warn("Failed to enqueue auto-factcheck")
		return
	}
	if !created {
		return
	}
	if err := o.Worker.Enqueue(ctx, req.ID); err != nil {
		o.Log.WithError(err).Warn("Failed to submit factcheck to worker queue")
	}
}

func sleepFor(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func descriptionOrEmpty(t *models.Topic) string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

func filterByParticipant(comments []*models.Comment, participantID uuid.UUID) []*models.Comment {
	var out []*models.Comment
	for _, c := range comments {
		if c.ParticipantID == participantID {
			out = append(out, c)
		}
	}
	return out
}

func toExistingComments(comments []*models.Comment) []gateway.ExistingComment {
	out := make([]gateway.ExistingComment, 0, len(comments))
	for _, c := range comments {
		ec := gateway.ExistingComment{
			ID:            c.ID.String(),
			ParticipantID: c.ParticipantID.String(),
			Content:       c.Content,
			References:    c.References,
			Citations:     c.Citations,
		}
		if c.Stance != nil {
			ec.Stance = *c.Stance
		}
		out = append(out, ec)
	}
	return out
}
