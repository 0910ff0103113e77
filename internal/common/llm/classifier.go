package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/metrics"
	"pantry-assistant/internal/common/validation"
)

// Unknown is the classification returned when no action fits.
const Unknown = "unknown"

// Classifier maps an utterance to an action name or Unknown.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// ActionDescription is what the classifier prompt knows about one action.
type ActionDescription struct {
	Name        string
	Description string
}

// ModelClassifier asks the completion service to pick one action name from
// a closed enum.
type ModelClassifier struct {
	completer Completer
	schema    validation.Schema
	prompt    string
	logger    logger.Logger
}

func NewModelClassifier(completer Completer, actions []ActionDescription, log logger.Logger) *ModelClassifier {
	sorted := append([]ActionDescription(nil), actions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	names := make([]string, 0, len(sorted)+1)
	var b strings.Builder
	b.WriteString("Classify the user's request about their pantry, shopping list, recipes or meal calendar.\n")
	b.WriteString("Answer with exactly one action name, or \"unknown\" when none applies.\n\nActions:\n")
	for _, a := range sorted {
		names = append(names, a.Name)
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}
	names = append(names, Unknown)

	return &ModelClassifier{
		completer: completer,
		schema: validation.Object(map[string]interface{}{
			"action":     validation.Enum(false, names...),
			"confidence": validation.Range(0, 1),
		}, "action"),
		prompt: b.String(),
		logger: log.With(map[string]interface{}{"component": "classifier"}),
	}
}

func (c *ModelClassifier) Classify(ctx context.Context, text string) (string, error) {
	out, err := c.completer.Complete(WithOperation(ctx, "classify"), text, c.prompt, c.schema)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeLLMTimeout {
			return "", err
		}
		return "", apperrors.NewIntentClassificationFailedError(err)
	}
	if err := validation.ValidateDocument("classification", c.schema, out); err != nil {
		return "", apperrors.NewIntentClassificationFailedError(err)
	}

	action, _ := out["action"].(string)
	c.logger.Debug("intent classified", map[string]interface{}{
		"action":     action,
		"confidence": out["confidence"],
	})
	return action, nil
}

// CachedClassifier memoizes successful classifications in redis, keyed by a
// hash of the whitespace-folded lowercase utterance. Unknown results and
// failures are never cached. Cache errors degrade to a direct call.
type CachedClassifier struct {
	next   Classifier
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewCachedClassifier(next Classifier, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedClassifier {
	return &CachedClassifier{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		prefix: "intent:",
		logger: log.With(map[string]interface{}{"component": "classifier_cache"}),
	}
}

func (c *CachedClassifier) cacheKey(text string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(folded))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (string, error) {
	key := c.cacheKey(text)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil && val != "":
		metrics.ClassifierCache.WithLabelValues("hit").Inc()
		return val, nil
	case err != nil && !errors.Is(err, redis.Nil):
		metrics.ClassifierCache.WithLabelValues("error").Inc()
		c.logger.Warn("classifier cache read failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err).Error(),
		})
	default:
		metrics.ClassifierCache.WithLabelValues("miss").Inc()
	}

	action, err := c.next.Classify(ctx, text)
	if err != nil || action == "" || action == Unknown {
		return action, err
	}

	if err := c.redis.Set(ctx, key, action, c.ttl).Err(); err != nil {
		c.logger.Warn("classifier cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return action, nil
}
