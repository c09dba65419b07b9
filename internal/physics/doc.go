// Package physics provides the plant models for the controller.
//
// Each model implements the [sim.Dynamics] interface, defining the
// differential equations governing the plant's evolution:
//
//   - [CartPole]: cart on a rail balancing an inverted pole, driven by a
//     horizontal force on the cart
//   - [Pendulum]: point mass on a rigid rod, driven by a joint torque
//
// The cart-pole is the plant the feedback law in internal/controller is
// tuned for; the simple pendulum backs the minimal motor simulation.
package physics
