package decompose

import (
	"strings"
	"testing"

	"github.com/stepwise-ai/stepwise/internal/model"
)

func taskStrings(ds []model.TaskDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Task
	}
	return out
}

func assertTasks(t *testing.T, got []model.TaskDescriptor, want []string) {
	t.Helper()
	gotStrs := taskStrings(got)
	if len(gotStrs) != len(want) {
		t.Fatalf("got %d tasks %q, want %d %q", len(gotStrs), gotStrs, len(want), want)
	}
	for i := range want {
		if gotStrs[i] != want[i] {
			t.Fatalf("task %d = %q, want %q", i, gotStrs[i], want[i])
		}
	}
}

func TestDecomposeMultilinePrompt(t *testing.T) {
	got := Decompose("Build the API\n\nwrite tests\nDeploy to staging")
	assertTasks(t, got, []string{"Build the API", "Write tests", "Deploy to staging"})
}

func TestDecomposeLineSplitWinsOverSeparators(t *testing.T) {
	got := Decompose("Design the schema. Then build it.\nWrite the tests. Finally ship.")
	assertTasks(t, got, []string{
		"Design the schema. Then build it.",
		"Write the tests. Finally ship.",
	})
}

func TestDecomposeSeparatorMarkers(t *testing.T) {
	got := Decompose("Design the schema. First, create the tables. Then populate them. Finally add the indexes.")
	assertTasks(t, got, []string{
		"Design the schema.",
		"Create the tables.",
		"Populate them.",
		"Add the indexes.",
	})
}

func TestDecomposeMarkerAtStartIsNotABoundary(t *testing.T) {
	got := Decompose("First, design the schema. Then build the API. Finally write tests for everything.")
	assertTasks(t, got, []string{
		"First, design the schema.",
		"Build the API.",
		"Write tests for everything.",
	})
}

func TestDecomposeSeparatorSkipsDuplicateCandidates(t *testing.T) {
	got := Decompose("Do the thing. Next, Do the thing. Then wrap up everything.")
	assertTasks(t, got, []string{"Do the thing.", "Wrap up everything."})
}

func TestDecomposeKeywordPhrases(t *testing.T) {
	prompt := "We should improve the pipeline. Your task is to migrate the database to the new cluster. You must verify replication afterwards."
	got := Decompose(prompt)
	assertTasks(t, got, []string{
		"Migrate the database to the new cluster.",
		"Verify replication afterwards.",
		prompt,
	})
}

func TestDecomposeSentenceFallback(t *testing.T) {
	got := Decompose("Refactor the authentication module for clarity. Update all the call sites accordingly.")
	assertTasks(t, got, []string{
		"Refactor the authentication module for clarity.",
		"Update all the call sites accordingly.",
	})
}

func TestDecomposeChunkFallback(t *testing.T) {
	got := Decompose("make the deployment pipeline faster and more reliable for everyone involved in the release process")
	assertTasks(t, got, []string{
		"Make the deployment pipeline faster",
		"And more reliable for everyone",
		"Involved in the release process",
	})
}

func TestDecomposeShortPromptSingleTask(t *testing.T) {
	got := Decompose("Fix the bug")
	assertTasks(t, got, []string{"Fix the bug"})
}

func TestDecomposeEmptyPrompt(t *testing.T) {
	got := Decompose("")
	assertTasks(t, got, []string{""})
}

func TestDecomposeWhitespacePromptReturnedVerbatim(t *testing.T) {
	got := Decompose("   \n  ")
	assertTasks(t, got, []string{"   \n  "})
}

func TestDecomposeTruncatesToMaxTasks(t *testing.T) {
	prompt := strings.Join([]string{
		"1. Gather requirements",
		"2. Draft the design",
		"3. Review with the team",
		"4. Implement the core",
		"5. Write integration tests",
		"6. Set up CI",
		"7. Deploy to staging",
		"8. Deploy to production",
	}, "\n")
	got := Decompose(prompt)
	if len(got) != MaxTasks {
		t.Fatalf("got %d tasks, want %d", len(got), MaxTasks)
	}
	if got[0].Task != "1. Gather requirements" || got[4].Task != "5. Write integration tests" {
		t.Fatalf("unexpected truncation: %q", taskStrings(got))
	}
}

func TestDecomposeNeverEmptyAndBounded(t *testing.T) {
	prompts := []string{
		"",
		" ",
		"x",
		"Fix it",
		"Do everything that needs doing around here, please and thank you",
		"a\nb\nc\nd\ne\nf\ng",
		"First, one. Second, two. Third, three. Fourth, four. Fifth, five. Sixth, six. Seventh, seven.",
		"The task is to rewrite the importer. You should benchmark it. You must document it.",
	}
	for _, p := range prompts {
		got := Decompose(p)
		if len(got) == 0 {
			t.Fatalf("Decompose(%q) returned no tasks", p)
		}
		if len(got) > MaxTasks {
			t.Fatalf("Decompose(%q) returned %d tasks", p, len(got))
		}
		if strings.TrimSpace(p) != "" {
			for i, d := range got {
				if strings.TrimSpace(d.Task) == "" {
					t.Fatalf("Decompose(%q) task %d is blank", p, i)
				}
			}
		}
	}
}

func TestSplitBullets(t *testing.T) {
	items := splitBullets("Tasks:\n- design the schema\n- write the code\n* test everything\n• ship it fast\n- ok")
	want := []string{"design the schema", "write the code", "test everything", "ship it fast"}
	if len(items) != len(want) {
		t.Fatalf("got %q, want %q", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("item %d = %q, want %q", i, items[i], want[i])
		}
	}
}

func TestSplitNumbered(t *testing.T) {
	items := splitNumbered("Plan:\n1. gather requirements\n2) draft the design\nStep 3: implement core\nStep4: review it all\n5. ok")
	want := []string{"gather requirements", "draft the design", "implement core", "review it all"}
	if len(items) != len(want) {
		t.Fatalf("got %q, want %q", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("item %d = %q, want %q", i, items[i], want[i])
		}
	}
}

func TestSplitSeparatorsSearchesMarkersInOrder(t *testing.T) {
	// "Next" is searched before "Then", so the window advances past the
	// later "Next" occurrence and the "Then" clause stays inside the first
	// candidate.
	tasks, tail := splitSeparators("Check the logs. Then restart the worker. Next archive old jobs.")
	if len(tasks) != 1 || tasks[0] != "Check the logs. Then restart the worker." {
		t.Fatalf("got tasks %q", tasks)
	}
	if strings.TrimSpace(tail) != "archive old jobs." {
		t.Fatalf("got tail %q", tail)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := []string{"  build the api  ", "", "Ship it"}
	once := normalize(in)
	twice := normalize(once)
	if len(once) != 2 || once[0] != "Build the api" || once[1] != "Ship it" {
		t.Fatalf("got %q", once)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("normalize not idempotent: %q vs %q", once[i], twice[i])
		}
	}
}
