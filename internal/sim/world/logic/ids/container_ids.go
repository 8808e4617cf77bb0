package ids

import "fmt"

func ContainerID(typ string, x, y, z int) string {
	return fmt.Sprintf("%s@%d,%d,%d", typ, x, y, z)
}
