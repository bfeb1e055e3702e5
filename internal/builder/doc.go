/*
Package builder is the public face of the frame graph. Passes and resources are
declared on a *Builder, and Compile turns the declarations into a *plan.Plan
that the executor can run against a device.

Declaration happens in program order. Every output a pass registers becomes
visible to the passes declared after it, which is what makes the data flow
acyclic by construction. Extra ordering edges can be added with
AddDependency; those are the only way to introduce a cycle, and Compile
rejects them.

Compilation is a multi-phase process:

 1. Reset: Instances created by a previous compile are destroyed and imported
    resources return to their initial state. Compiling twice yields the same
    plan.

 2. Dependency Linking: Every node is added to a generic `dag` graph. An edge
    runs from the producer of each connected input to its consumer, plus one
    for every explicit dependency. The graph is then checked for cycles.

 3. Scheduling: The `scheduler` package sorts the nodes into waves. Passes in
    one wave have no dependency on each other.

 4. Lifetime Analysis: The last wave that touches each handle is recorded so
    the handle can give up its instance as soon as it is no longer needed.

 5. Wave Compilation: For each wave, handles born in it are bound to a
    physical instance, reusing a free one of the same blueprint when possible.
    Each pass then has its attachments synchronized by the `compile` package.
    At the end of the wave the reference counts are settled and handles whose
    lifetime ended are retired, freeing their instances for later waves.

 6. Assembly: Once every release has been paired with an acquire, the
    instances, assignments and semaphores are copied into the plan.
*/
package builder
