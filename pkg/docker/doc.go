// Package docker runs MySQL in Docker, either as a throwaway testcontainers instance for
// integration tests or as a long-lived development server managed through the Docker
// Engine API.
//
// # Test containers
//
//	container := docker.NewMySQL(docker.DockerOptions{Version: "8.0"})
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer container.Stop(ctx)
//
//	conn, _ := container.Connection(ctx)
//	cfg := config.Default()
//	cfg.Connection = conn
//
// Containers started this way are reaped when the process exits.
//
// # Development server
//
//	cli, _ := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
//	engine := docker.NewEngine(cli)
//	_ = engine.Start(ctx, docker.ContainerOptions{
//		Name:  "departure-dev",
//		Image: "mysql:8.0",
//		Env:   map[string]string{"MYSQL_ROOT_PASSWORD": "departure"},
//		Ports: map[int]int{3306: 3306},
//	})
package docker
