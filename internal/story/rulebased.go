package story

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/ivlev/story2video/internal/textutil"
)

var Morals = map[string]string{
	"kindness":  "Kindness makes friends and brightens the world.",
	"honesty":   "Telling the truth keeps hearts light and trust strong.",
	"sharing":   "Sharing turns little joys into big ones.",
	"courage":   "Being brave means trying even when things feel new.",
	"curiosity": "Questions open doors to wonderful discoveries.",
}

var (
	adjectives = []string{"soft", "bright", "happy", "gentle", "sparkly", "cozy"}
	buddies    = []string{"bunny", "panda", "fox", "kitten", "puppy", "duckling"}
	places     = []string{"meadow", "forest", "playroom", "treehouse", "seashore", "garden"}
	colors     = []string{"sunny yellow", "sky blue", "leafy green", "peachy pink", "lavender"}
)

// RuleBased builds stories from a fixed narrative skeleton. It never fails
// and returns identical output for identical requests.
type RuleBased struct{}

func (RuleBased) Generate(_ context.Context, req Request) (Story, error) {
	return Compose(req), nil
}

// Compose is the synchronous form of RuleBased.Generate.
func Compose(req Request) Story {
	req = req.Normalize()
	rng := rand.New(rand.NewPCG(seed(req), 0x5eed))

	beats := skeleton(req)
	duration := SceneDuration(req.Minutes, req.Scenes)

	scenes := make([]Scene, 0, len(beats))
	for _, idea := range beats {
		adj := pick(rng, adjectives)
		buddy := pick(rng, buddies)
		place := pick(rng, places)
		color := pick(rng, colors)
		scenes = append(scenes, Scene{
			Text: fmt.Sprintf("%s and a %s %s were in the %s. %s They use %s to help.",
				req.Title, adj, buddy, place, idea, req.Theme),
			Prompt: fmt.Sprintf("Cute children's book illustration, %s and child in a %s, "+
				"soft lighting, pastel colors, %s, friendly faces, simple shapes, high contrast, clean background",
				buddy, place, color),
			Duration: duration,
		})
	}

	return Story{
		Title:  fmt.Sprintf("%s: A %s Adventure", req.Title, textutil.TitleCase(req.Theme)),
		Scenes: scenes,
	}
}

// skeleton returns one narrative beat per scene; extra scenes are exploration
// beats inserted before the moral.
func skeleton(req Request) []string {
	moral, ok := Morals[req.Moral]
	if !ok {
		moral = req.Moral
	}
	beats := []string{
		fmt.Sprintf("Introduce %s in a cozy place related to %s.", req.Title, req.Theme), // setup
		fmt.Sprintf("A gentle problem appears involving %s.", req.Theme),                 // call to adventure
		"A helpful friend shares an idea.",
		"They try a new way together.",
		"Something goes a bit wrong, but feelings are respected.", // setback
		"They breathe, think, and try again.",
		"The problem is solved kindly.",
		moral,
	}
	const explore = "They notice something wonderful around them."
	for len(beats) < req.Scenes {
		last := beats[len(beats)-1]
		beats = append(beats[:len(beats)-1], explore, last)
	}
	return beats[:req.Scenes]
}

// seed hashes every request field so that any change reshuffles the picks.
func seed(req Request) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%d\x00%d", req.Title, req.Theme, req.Moral, req.Age, req.Minutes, req.Scenes)
	return h.Sum64()
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.IntN(len(items))]
}
