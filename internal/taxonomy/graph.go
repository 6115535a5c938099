package taxonomy

// DFS colours for dependency cycle detection. Edges point from an event to the events it requires.
const (
	unvisited = iota
	visiting
	done
)

// findCycle returns the first dependency cycle found, as the list of event names
// that close the loop (first and last element are equal), or nil if the graph is
// acyclic. Events are visited in declaration order so the reported cycle is stable.
// Requirements naming undeclared events are dangling edges and cannot form a cycle.
func findCycle(events []EventDefinition) []string {
	requires := make(map[string][]string, len(events))
	for _, ev := range events {
		requires[ev.Name] = ev.Requires
	}

	state := make(map[string]int, len(events))
	path := make([]string, 0, len(events))

	var visit func(name string) []string

	visit = func(name string) []string {
		state[name] = visiting
		path = append(path, name)

		for _, next := range requires[name] {
			if _, declared := requires[next]; !declared {
				continue
			}

			switch state[next] {
			case visiting:
				for i, n := range path {
					if n == next {
						cycle := append([]string(nil), path[i:]...)

						return append(cycle, next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		state[name] = done

		return nil
	}

	for _, ev := range events {
		if state[ev.Name] == unvisited {
			if cycle := visit(ev.Name); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}
